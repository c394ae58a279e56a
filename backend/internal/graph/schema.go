package graph

// Node labels and relationship types. Entity nodes are keyed by name
// fingerprint, collection nodes by the relational collection id. Every
// relationship carries alephEntity, the id of the entity that produced it, so
// that an entity's contribution can be removed again.
const (
	LabelEntity     = "Entity"
	LabelCollection = "Collection"
	RelAKA          = "AKA"
	RelPartOf       = "PART_OF"
)

var schemaStatements = []string{
	`CREATE CONSTRAINT entity_fingerprint_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.fingerprint IS UNIQUE`,
	`CREATE CONSTRAINT collection_id_unique IF NOT EXISTS FOR (c:Collection) REQUIRE c.alephCollection IS UNIQUE`,
	`CREATE INDEX entity_aleph_entity IF NOT EXISTS FOR (n:Entity) ON (n.alephEntity)`,
}

const mergeEntityCypher = `
MERGE (n:Entity {fingerprint: $fingerprint})
SET n += $props
`

const mergeAKACypher = `
MATCH (n:Entity {fingerprint: $source})
MATCH (a:Entity {fingerprint: $alias})
MERGE (n)-[:AKA {alephEntity: $entity}]->(a)
`

const mergePartOfCypher = `
UNWIND $collections AS c
MERGE (col:Collection {alephCollection: c.id})
SET col.name = c.label,
    col.foreignId = c.foreign_id
WITH col
MATCH (n:Entity {fingerprint: $fingerprint})
MERGE (n)-[:PART_OF {alephEntity: $entity}]->(col)
`

const removeEntityEdgesCypher = `
MATCH ()-[r {alephEntity: $entity}]->()
DELETE r
`

const deleteOrphanNodesCypher = `
MATCH (n)
WHERE (n:Entity OR n:Collection) AND NOT EXISTS { (n)--() }
DELETE n
`
