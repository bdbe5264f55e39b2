package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flatfinder/flatfinder/internal/db"
	"github.com/flatfinder/flatfinder/internal/utils/pagination"
)

// swipedSetCap bounds the swiped-set query used for candidate filtering.
// A user past the cap may see previously-passed profiles resurface; that
// staleness is accepted in exchange for bounded filtering cost.
const swipedSetCap = 500

// SwipeRepository is the append-only ledger of like/pass verdicts.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// RecordSwipe inserts or overwrites the verdict swiper -> target.
//
// Behavior:
//   - If the (swiper_uid, target_uid) pair exists → the row is updated with
//     the new dir (last write wins).
//   - If it doesn't exist → a new row is inserted.
//   - No check that target exists; a dangling swipe row is tolerated.
func (r *SwipeRepository) RecordSwipe(ctx context.Context, swiperUID, targetUID, dir string) error {
	swipe := db.Swipe{
		SwiperUID: swiperUID,
		TargetUID: targetUID,
		Dir:       dir,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_uid"}, {Name: "target_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"dir", "updated_at"}),
		}).
		Create(&swipe).Error
}

// FetchSwipedSet returns the target uids of the swiper's most recent swipes,
// capped at swipedSetCap, as a membership set for candidate exclusion.
func (r *SwipeRepository) FetchSwipedSet(ctx context.Context, swiperUID string) (map[string]struct{}, error) {
	var targets []string
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_uid = ?", swiperUID).
		Order("updated_at DESC").
		Limit(swipedSetCap).
		Pluck("target_uid", &targets).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return set, nil
}

// GetSwipe returns the swipe swiper -> target, or nil when none was ever
// recorded. Absence is normal control flow, not an error.
func (r *SwipeRepository) GetSwipe(ctx context.Context, swiperUID, targetUID string) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("swiper_uid = ? AND target_uid = ?", swiperUID, targetUID).
		First(&swipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &swipe, nil
}

// GetLikers returns all users who liked the given target.
//
// Behavior:
//   - Only swipes where target_uid = X and dir = like are returned.
//   - Excludes users that the target explicitly passed.
//   - Ordered by updated_at DESC, swiper_uid DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *SwipeRepository) GetLikers(
	ctx context.Context,
	targetUID string,
	paginationToken *string,
	limit int,
) ([]db.Swipe, *string, error) {
	return r.likers(ctx, targetUID, paginationToken, limit, false)
}

// GetNewLikers returns users who liked the target but have not been liked back.
//
// Behavior:
//   - Like GetLikers, additionally excluding mutual likes.
func (r *SwipeRepository) GetNewLikers(
	ctx context.Context,
	targetUID string,
	paginationToken *string,
	limit int,
) ([]db.Swipe, *string, error) {
	return r.likers(ctx, targetUID, paginationToken, limit, true)
}

func (r *SwipeRepository) likers(
	ctx context.Context,
	targetUID string,
	paginationToken *string,
	limit int,
	onlyNew bool,
) ([]db.Swipe, *string, error) {
	var swipes []db.Swipe

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.target_uid = ? AND s.dir = ?", targetUID, db.DirLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_uid = ?
				  AND s2.target_uid = s.swiper_uid
				  AND s2.dir = ?
			)`, targetUID, db.DirPass).
		Order("s.updated_at DESC, s.swiper_uid DESC").
		Limit(limit + 1)

	if onlyNew {
		// exclude mutual likes
		subQuery := r.db.
			Table("swipes").
			Select("1").
			Where("swiper_uid = s.target_uid AND target_uid = s.swiper_uid AND dir = ?", db.DirLike)
		query = query.Where("NOT EXISTS (?)", subQuery)
	}

	// apply cursor
	if cursor.UID != "" && cursor.UpdatedUnix > 0 {
		ts := time.UnixMilli(cursor.UpdatedUnix)
		query = query.Where(
			"(s.updated_at < ? OR (s.updated_at = ? AND s.swiper_uid < ?))",
			ts, ts, cursor.UID,
		)
	}

	if err := query.Find(&swipes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(swipes) > limit {
		last := swipes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UID:         last.SwiperUID,
			UpdatedUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		swipes = swipes[:limit]
	}

	return swipes, nextToken, nil
}

// CountLikers returns how many users liked the given target, excluding users
// the target explicitly passed. Used with the Redis counter (DB is fallback).
func (r *SwipeRepository) CountLikers(ctx context.Context, targetUID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.target_uid = ? AND s.dir = ?", targetUID, db.DirLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_uid = ?
				  AND s2.target_uid = s.swiper_uid
				  AND s2.dir = ?
			)`, targetUID, db.DirPass).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
