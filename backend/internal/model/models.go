package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity states
const (
	StatePending = "pending"
	StateActive  = "active"
	StateDeleted = "deleted"
)

// Collection groups documents and entities under one access policy.
type Collection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ForeignID string    `gorm:"uniqueIndex;size:255;not null" json:"foreign_id"`
	Label     string    `json:"label"`
	Public    bool      `gorm:"not null;default:false" json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a user or group account. An empty Email means the role cannot be
// notified.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ForeignID string    `gorm:"uniqueIndex;size:255;not null" json:"foreign_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	APIKey    string    `gorm:"column:api_key;uniqueIndex;size:255;not null" json:"-"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.APIKey == "" {
		r.APIKey = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return nil
}

func (r *Role) String() string {
	if r == nil {
		return "<Role(nil)>"
	}
	return fmt.Sprintf("<Role(%d,%s)>", r.ID, r.ForeignID)
}

// Permission grants a role access to a collection. Write implies read.
type Permission struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"uniqueIndex:idx_permission_role_collection;not null"`
	CollectionID uint `gorm:"uniqueIndex:idx_permission_role_collection;not null"`
	Read         bool `gorm:"column:can_read;not null;default:false"`
	Write        bool `gorm:"column:can_write;not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entity is a named person, company or other actor.
type Entity struct {
	ID               string            `gorm:"primaryKey;size:64" json:"id"`
	Name             string            `gorm:"not null" json:"name"`
	Type             string            `gorm:"size:64" json:"type"`
	State            string            `gorm:"size:32;index;not null;default:active" json:"state"`
	JurisdictionCode *string           `gorm:"size:16" json:"jurisdiction_code,omitempty"`
	Collections      []Collection      `gorm:"many2many:entity_collections;" json:"collections,omitempty"`
	OtherNames       []EntityOtherName `gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE" json:"other_names,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (e *Entity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.State == "" {
		e.State = StateActive
	}
	return nil
}

// IsActive reports whether the entity should be present in the graph.
func (e *Entity) IsActive() bool {
	return e.State == StateActive
}

// EntityOtherName is an alternative spelling or alias of an entity.
type EntityOtherName struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	EntityID    string `gorm:"size:64;index;not null" json:"entity_id"`
	DisplayName string `gorm:"not null" json:"display_name"`
}

// Document is a searchable record inside a collection.
type Document struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	CollectionID uint       `gorm:"index;not null" json:"collection_id"`
	Collection   Collection `json:"-"`
	Title        string     `json:"title"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `gorm:"size:255" json:"mime_type,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Text         string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&Collection{},
		&Role{},
		&Permission{},
		&Entity{},
		&EntityOtherName{},
		&Document{},
	}
}
