package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
)

// CreateEntity inserts an entity together with its other names and
// collection links.
func (s *Store) CreateEntity(ctx context.Context, entity *model.Entity) error {
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return wrap("create entity", err)
	}
	s.logger.Debug("Entity created",
		zap.String("entity_id", entity.ID),
		zap.String("name", entity.Name),
	)
	return nil
}

// GetEntity loads an entity by id with collections and other names.
func (s *Store) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	var entity model.Entity
	err := s.db.WithContext(ctx).
		Preload("Collections").
		Preload("OtherNames").
		First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("entity", id)
	}
	if err != nil {
		return nil, wrap("get entity", err)
	}
	return &entity, nil
}

// SetEntityState changes the lifecycle state of an entity.
func (s *Store) SetEntityState(ctx context.Context, id, state string) error {
	res := s.db.WithContext(ctx).Model(&model.Entity{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return wrap("set entity state", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFound("entity", id)
	}
	return nil
}

// EachActiveEntity streams active entities in primary key order, batchSize
// rows at a time. An error returned by fn stops the iteration and is returned
// unchanged.
func (s *Store) EachActiveEntity(ctx context.Context, batchSize int, fn func(*model.Entity) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var fnErr error
	var batch []model.Entity
	res := s.db.WithContext(ctx).
		Preload("Collections").
		Preload("OtherNames").
		Where("state = ?", model.StateActive).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, n int) error {
			for i := range batch {
				if err := fn(&batch[i]); err != nil {
					fnErr = err
					return err
				}
			}
			return nil
		})
	if fnErr != nil {
		return fnErr
	}
	return wrap("iterate entities", res.Error)
}
