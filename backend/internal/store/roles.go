package store

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
)

// Access actions
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

func (s *Store) CreateRole(ctx context.Context, role *model.Role) error {
	return wrap("create role", s.db.WithContext(ctx).Create(role).Error)
}

func (s *Store) GetRole(ctx context.Context, id uint) (*model.Role, error) {
	var role model.Role
	err := s.db.WithContext(ctx).First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("role", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, wrap("get role", err)
	}
	return &role, nil
}

func (s *Store) RoleByForeignID(ctx context.Context, foreignID string) (*model.Role, error) {
	var role model.Role
	err := s.db.WithContext(ctx).Where("foreign_id = ?", foreignID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("role", foreignID)
	}
	if err != nil {
		return nil, wrap("get role", err)
	}
	return &role, nil
}

// RoleByAPIKey resolves request credentials to a role.
func (s *Store) RoleByAPIKey(ctx context.Context, key string) (*model.Role, error) {
	if key == "" {
		return nil, apperrors.NewNotFound("role", "api key")
	}
	var role model.Role
	err := s.db.WithContext(ctx).Where("api_key = ?", key).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("role", "api key")
	}
	if err != nil {
		return nil, wrap("get role by api key", err)
	}
	return &role, nil
}

func (s *Store) CreateCollection(ctx context.Context, collection *model.Collection) error {
	return wrap("create collection", s.db.WithContext(ctx).Create(collection).Error)
}

func (s *Store) CollectionByForeignID(ctx context.Context, foreignID string) (*model.Collection, error) {
	var collection model.Collection
	err := s.db.WithContext(ctx).Where("foreign_id = ?", foreignID).First(&collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("collection", foreignID)
	}
	if err != nil {
		return nil, wrap("get collection", err)
	}
	return &collection, nil
}

// GrantPermission creates or replaces the permission of role on collection.
func (s *Store) GrantPermission(ctx context.Context, roleID, collectionID uint, read, write bool) error {
	perm := model.Permission{
		RoleID:       roleID,
		CollectionID: collectionID,
		Read:         read || write,
		Write:        write,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role_id"}, {Name: "collection_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"can_read", "can_write", "updated_at"}),
	}).Create(&perm).Error
	return wrap("grant permission", err)
}

// CollectionIDs returns the ids of the collections role may access for
// action. Admins see everything; anonymous (nil) roles see public
// collections when reading and nothing when writing.
func (s *Store) CollectionIDs(ctx context.Context, role *model.Role, action string) ([]uint, error) {
	ids := []uint{}
	q := s.db.WithContext(ctx).Model(&model.Collection{}).Order("id")

	switch {
	case role != nil && role.IsAdmin:
	case action == ActionWrite:
		if role == nil {
			return ids, nil
		}
		q = q.Where("id IN (?)", s.db.Model(&model.Permission{}).
			Select("collection_id").
			Where("role_id = ? AND can_write = ?", role.ID, true))
	default:
		if role == nil {
			q = q.Where("public = ?", true)
		} else {
			q = q.Where("(public = ? OR id IN (?))", true, s.db.Model(&model.Permission{}).
				Select("collection_id").
				Where("role_id = ? AND (can_read = ? OR can_write = ?)", role.ID, true, true))
		}
	}

	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, wrap("collection ids", err)
	}
	return ids, nil
}
