package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flatfinder/flatfinder/internal/db"
)

// GroupRepository manages conversation groups, their membership and the
// denormalized last-message projection.
type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(database *gorm.DB) *GroupRepository {
	return &GroupRepository{db: database}
}

// PairKey builds the canonical key for a two-member match: both uids sorted
// and joined, so either ordering of a mutual like maps to the same key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// EnsureMatchGroup creates the conversation for a mutual-like pair, exactly
// once. The creation transaction plus the unique pair_key index are the
// at-most-once mechanism; re-triggered mutual likes get the existing group
// back instead of a duplicate.
func (r *GroupRepository) EnsureMatchGroup(ctx context.Context, a, b string) (groupID string, created bool, err error) {
	pair := PairKey(a, b)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Group
		findErr := tx.Where("pair_key = ?", pair).First(&existing).Error
		if findErr == nil {
			groupID = existing.ID
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		g := db.Group{
			ID:            uuid.NewString(),
			PairKey:       &pair,
			LastTimestamp: time.Now(),
		}
		if createErr := tx.Create(&g).Error; createErr != nil {
			return createErr
		}
		members := []db.GroupMember{
			{GroupID: g.ID, UID: a, Pos: 0},
			{GroupID: g.ID, UID: b, Pos: 1},
		}
		if createErr := tx.Create(&members).Error; createErr != nil {
			return createErr
		}
		groupID = g.ID
		created = true
		return nil
	})

	// two near-simultaneous detections can race past the lookup; the unique
	// index rejects the loser, which then reads the winner's group
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing db.Group
		if findErr := r.db.WithContext(ctx).Where("pair_key = ?", pair).First(&existing).Error; findErr != nil {
			return "", false, findErr
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return groupID, created, nil
}

// CreateGroup transactionally creates a manually-assembled group. A nil name
// means the display name is derived from the counterpart at render time.
func (r *GroupRepository) CreateGroup(ctx context.Context, uids []string, name *string) (string, error) {
	id := uuid.NewString()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g := db.Group{
			ID:            id,
			Name:          name,
			LastTimestamp: time.Now(),
		}
		if err := tx.Create(&g).Error; err != nil {
			return err
		}

		members := make([]db.GroupMember, len(uids))
		for i, uid := range uids {
			members[i] = db.GroupMember{GroupID: id, UID: uid, Pos: i}
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the group with its members, or nil when it does not exist.
func (r *GroupRepository) Get(ctx context.Context, groupID string) (*db.Group, error) {
	var g db.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("pos ASC") }).
		Where("id = ?", groupID).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListForUser returns every group the uid belongs to, most recent activity
// first. This backs the chat list.
func (r *GroupRepository) ListForUser(ctx context.Context, uid string) ([]db.Group, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.GroupMember{}).
		Where("uid = ?", uid).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var groups []db.Group
	err = r.db.WithContext(ctx).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("pos ASC") }).
		Where("id IN ?", ids).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].LastTimestamp.After(groups[j].LastTimestamp)
	})
	return groups, nil
}

// AppendMessage writes one message and updates the group's denormalized
// last-message fields in the same transaction. Both land or neither does;
// a partial write would desynchronize the chat-list preview from history.
func (r *GroupRepository) AppendMessage(ctx context.Context, groupID, sender, body string) (*db.Message, error) {
	msg := db.Message{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Sender:    sender,
		Body:      body,
		Timestamp: time.Now(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g db.Group
		if err := tx.Where("id = ?", groupID).First(&g).Error; err != nil {
			return err
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&db.Group{}).Where("id = ?", groupID).Updates(map[string]any{
			"last_message":   msg.Body,
			"last_sender":    msg.Sender,
			"last_timestamp": msg.Timestamp,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns up to limit most recent messages of the group, newest
// first. Callers feed them through the ordered message store for display.
func (r *GroupRepository) ListMessages(ctx context.Context, groupID string, limit int) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkReceived sets the read receipt on a message, at most once.
func (r *GroupRepository) MarkReceived(ctx context.Context, groupID, messageID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ? AND group_id = ? AND received IS NULL", messageID, groupID).
		Update("received", now).Error
}

// Delete removes the group and its membership rows. Messages are left
// orphaned on purpose: history has no access path once the group is gone.
func (r *GroupRepository) Delete(ctx context.Context, groupID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&db.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", groupID).Delete(&db.Group{}).Error
	})
}

// UpdateLastNotified stamps the group's push-throttle marker.
func (r *GroupRepository) UpdateLastNotified(ctx context.Context, groupID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Group{}).
		Where("id = ?", groupID).
		Update("last_notified", at).Error
}
