package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flatfinder/flatfinder/internal/db"
)

// PropertyRepository provides data access for rental listings.
type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(database *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: database}
}

// PropertyQuery mirrors the candidate query shape: optional area equality,
// optional rent ceiling which forces rent ASC as the primary sort.
type PropertyQuery struct {
	Area    string
	MaxRent *int64
	Limit   int
}

func (r *PropertyRepository) Create(ctx context.Context, p *db.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PropertyRepository) Search(ctx context.Context, q PropertyQuery) ([]db.Property, error) {
	tx := r.db.WithContext(ctx).Model(&db.Property{})

	if q.Area != "" {
		tx = tx.Where("area = ?", q.Area)
	}
	if q.MaxRent != nil {
		tx = tx.Where("rent <= ?", *q.MaxRent).Order("rent ASC")
	}

	var props []db.Property
	err := tx.Order("created_at DESC").
		Limit(q.Limit).
		Find(&props).Error
	return props, err
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerUID string) ([]db.Property, error) {
	var props []db.Property
	err := r.db.WithContext(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("created_at DESC").
		Find(&props).Error
	return props, err
}
