package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/flatfinder/flatfinder/internal/db"
)

// ProfileRepository provides data access for flatmate profiles.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// ProfilePatch is a merge patch: only non-nil fields are written, so a patch
// never clobbers unrelated fields already on the profile.
type ProfilePatch struct {
	Name      *string   `json:"name"`
	Age       *int      `json:"age"`
	Bio       *string   `json:"bio"`
	Budget    *int64    `json:"budget"`
	Location  *string   `json:"location"`
	Tags      *[]string `json:"tags"`
	AvatarURL *string   `json:"avatar_url"`
}

// CandidateQuery describes one candidate fetch.
type CandidateQuery struct {
	Area      string
	MaxBudget *int64
	Limit     int
}

// Get returns the profile for uid, or nil when none exists yet. A missing
// profile is normal (first write creates it), not an error.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert applies a merge patch to the profile, creating it on first write.
// last_active_at is refreshed on every write.
func (r *ProfileRepository) Upsert(ctx context.Context, uid string, patch ProfilePatch) error {
	now := time.Now()

	updates := map[string]any{"last_active_at": now}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Age != nil {
		updates["age"] = *patch.Age
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if patch.Budget != nil {
		updates["budget"] = *patch.Budget
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = *patch.AvatarURL
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Profile{}).Where("uid = ?", uid).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if patch.Tags != nil {
				// serialized column, written through the model API
				return tx.Model(&db.Profile{UID: uid}).Update("tags", *patch.Tags).Error
			}
			return nil
		}

		// first write: create with whatever the patch carried
		p := db.Profile{UID: uid, LastActiveAt: now}
		applyPatch(&p, patch)
		return tx.Create(&p).Error
	})
}

func applyPatch(p *db.Profile, patch ProfilePatch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Budget != nil {
		p.Budget = *patch.Budget
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Tags != nil {
		p.Tags = *patch.Tags
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
}

// FindCandidates runs the candidate query.
//
// Ordering contract:
//   - A budget range filter forces a primary sort on budget ASC: the
//     range-filtered field sorts first.
//   - Always a secondary (or sole) sort on last_active_at DESC, then LIMIT.
//
// Exclusion of the requester and already-swiped uids happens in memory at the
// service layer, not here.
func (r *ProfileRepository) FindCandidates(ctx context.Context, q CandidateQuery) ([]db.Profile, error) {
	tx := r.db.WithContext(ctx).Model(&db.Profile{})

	if q.Area != "" {
		tx = tx.Where("location = ?", q.Area)
	}
	if q.MaxBudget != nil {
		tx = tx.Where("budget <= ?", *q.MaxBudget).Order("budget ASC")
	}

	var profiles []db.Profile
	err := tx.Order("last_active_at DESC").
		Limit(q.Limit).
		Find(&profiles).Error
	return profiles, err
}

// NamesFor returns a uid -> display name map for the given uids; uids without
// a profile are simply absent from the map.
func (r *ProfileRepository) NamesFor(ctx context.Context, uids []string) (map[string]string, error) {
	if len(uids) == 0 {
		return map[string]string{}, nil
	}

	var rows []db.Profile
	err := r.db.WithContext(ctx).
		Select("uid", "name", "avatar_url").
		Where("uid IN ?", uids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(rows))
	for _, p := range rows {
		names[p.UID] = p.Name
	}
	return names, nil
}
