package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flatfinder/flatfinder/internal/db"
)

// SupportRepository covers support tickets and the device push-token registry.
type SupportRepository struct {
	db *gorm.DB
}

func NewSupportRepository(database *gorm.DB) *SupportRepository {
	return &SupportRepository{db: database}
}

func (r *SupportRepository) CreateTicket(ctx context.Context, t *db.SupportTicket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "open"
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *SupportRepository) ListTickets(ctx context.Context, uid string) ([]db.SupportTicket, error) {
	var tickets []db.SupportTicket
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("created_at DESC").
		Find(&tickets).Error
	return tickets, err
}

// RegisterToken upserts a device token. Keyed by token: a device that changes
// hands is re-pointed at the new uid instead of duplicated.
func (r *SupportRepository) RegisterToken(ctx context.Context, token, uid string) error {
	row := db.DeviceToken{Token: token, UID: uid}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"uid", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *SupportRepository) TokensForUser(ctx context.Context, uid string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&db.DeviceToken{}).
		Where("uid = ?", uid).
		Pluck("token", &tokens).Error
	return tokens, err
}
