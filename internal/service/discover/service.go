package discover

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/db"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/repository"
	"github.com/flatfinder/flatfinder/internal/utils/avatar"
	"github.com/flatfinder/flatfinder/internal/ws"
)

const (
	defaultCandidateLimit = 30
	likersPageSize        = 5
	filtersTTL            = 24 * time.Hour
)

// Filters is a user's saved discovery criteria. A nil MaxBudget omits the
// budget constraint and its ordering entirely.
type Filters struct {
	Area      string `json:"area,omitempty"`
	MaxBudget *int64 `json:"max_budget,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Candidate is a profile eligible to be shown for swiping.
type Candidate struct {
	UID          string    `json:"uid"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Bio          string    `json:"bio"`
	Budget       int64     `json:"budget"`
	Location     string    `json:"location"`
	Tags         []string  `json:"tags"`
	AvatarURL    string    `json:"avatar_url"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// SwipeResult reports what a swipe produced.
type SwipeResult struct {
	Matched bool   `json:"matched"`
	GroupID string `json:"group_id,omitempty"`
}

// Liker is one entry of a who-liked-you listing.
type Liker struct {
	UID       string `json:"uid"`
	Timestamp int64  `json:"unix_timestamp"`
}

// Service implements the discovery feature: candidate selection, the swipe
// ledger, and match materialization.
type Service struct {
	appCtx      *app.AppContext
	swipeRepo   *repository.SwipeRepository
	profileRepo *repository.ProfileRepository
	groupRepo   *repository.GroupRepository
}

// NewService creates a new discover service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		swipeRepo:   repository.NewSwipeRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		groupRepo:   repository.NewGroupRepository(appCtx.DB),
	}
}

// LoadCandidates returns profiles eligible for uid to swipe on.
//
// Behavior:
//  1. Fetches the capped swiped set from the ledger.
//  2. Queries profiles with the optional area/budget constraints (a budget
//     ceiling forces budget ASC as the primary sort, then activity DESC).
//  3. Maps rows defensively, filling a stable fallback avatar.
//  4. Post-filters in memory: drops the requester and already-swiped uids.
//
// The output preserves store order minus exclusions and may be shorter than
// the limit; no second fetch compensates.
func (s *Service) LoadCandidates(ctx context.Context, uid string, f Filters) ([]Candidate, error) {
	if f.Limit <= 0 {
		f.Limit = defaultCandidateLimit
	}

	swiped, err := s.swipeRepo.FetchSwipedSet(ctx, uid)
	if err != nil {
		s.appCtx.Logger.Error("FetchSwipedSet failed", "uid", uid, "err", err)
		return nil, svcErr.Map(err)
	}

	profiles, err := s.profileRepo.FindCandidates(ctx, repository.CandidateQuery{
		Area:      f.Area,
		MaxBudget: f.MaxBudget,
		Limit:     f.Limit,
	})
	if err != nil {
		s.appCtx.Logger.Error("FindCandidates failed", "uid", uid, "err", err)
		return nil, svcErr.Map(err)
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if p.UID == uid {
			continue
		}
		if _, ok := swiped[p.UID]; ok {
			continue
		}
		candidates = append(candidates, mapCandidate(p))
	}

	s.appCtx.Logger.Debug("LoadCandidates result", "uid", uid, "count", len(candidates))
	return candidates, nil
}

// mapCandidate converts a stored profile into a candidate with defensive
// defaults; missing optional fields never produce an error.
func mapCandidate(p db.Profile) Candidate {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return Candidate{
		UID:          p.UID,
		Name:         p.Name,
		Age:          p.Age,
		Bio:          p.Bio,
		Budget:       p.Budget,
		Location:     p.Location,
		Tags:         tags,
		AvatarURL:    avatar.OrFallback(p.AvatarURL, p.UID),
		LastActiveAt: p.LastActiveAt,
	}
}

// RecordSwipe writes the verdict swiper -> target and, on a like, checks for
// a mutual match. Swiping the same pair again simply overwrites the verdict.
func (s *Service) RecordSwipe(ctx context.Context, swiperUID, targetUID, dir string) (SwipeResult, error) {
	s.appCtx.Logger.Debug("RecordSwipe called", "swiper", swiperUID, "target", targetUID, "dir", dir)

	if dir != db.DirLike && dir != db.DirPass {
		return SwipeResult{}, svcErr.InvalidArgument("dir must be like or pass")
	}
	if swiperUID == targetUID {
		return SwipeResult{}, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	if err := s.swipeRepo.RecordSwipe(ctx, swiperUID, targetUID, dir); err != nil {
		return SwipeResult{}, svcErr.Map(err)
	}

	// update cached like count for the target
	key := s.appCtx.RedisCache.KeyForLikeCount(targetUID)
	if dir == db.DirLike {
		_, _ = s.appCtx.RedisCache.Incr(ctx, key)
	} else {
		_, _ = s.appCtx.RedisCache.Decr(ctx, key)
	}
	_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err() // refresh TTL

	if dir != db.DirLike {
		return SwipeResult{}, nil
	}

	groupID, matched, err := s.EnsureMatchIfMutualLike(ctx, swiperUID, targetUID)
	if err != nil {
		return SwipeResult{}, err
	}
	return SwipeResult{Matched: matched, GroupID: groupID}, nil
}

// EnsureMatchIfMutualLike reads the reciprocal swipe and, when it is a like,
// materializes the conversation for the pair.
//
// The reciprocal read is only the fast path; the creation transaction is
// what guarantees at-most-once. An absent or pass reciprocal is a no-op.
func (s *Service) EnsureMatchIfMutualLike(ctx context.Context, me, target string) (groupID string, matched bool, err error) {
	reciprocal, err := s.swipeRepo.GetSwipe(ctx, target, me)
	if err != nil {
		return "", false, svcErr.Map(err)
	}
	if reciprocal == nil || reciprocal.Dir != db.DirLike {
		s.appCtx.Logger.Debug("no mutual like", "me", me, "target", target)
		return "", false, nil
	}

	groupID, created, err := s.groupRepo.EnsureMatchGroup(ctx, me, target)
	if err != nil {
		s.appCtx.Logger.Error("EnsureMatchGroup failed", "me", me, "target", target, "err", err)
		return "", false, svcErr.Map(err)
	}

	if created && s.appCtx.Hub != nil {
		s.appCtx.Hub.SendToUsers([]string{me, target}, ws.Event{
			Type:    ws.EventMatch,
			Payload: map[string]string{"group_id": groupID},
		})
	}

	s.appCtx.Logger.Info("mutual like", "me", me, "target", target, "group", groupID, "created", created)
	return groupID, true, nil
}

// ListLikedYou returns users who liked the given uid, newest first.
func (s *Service) ListLikedYou(ctx context.Context, uid string, paginationToken *string) ([]Liker, *string, error) {
	swipes, next, err := s.swipeRepo.GetLikers(ctx, uid, paginationToken, likersPageSize)
	if err != nil {
		s.appCtx.Logger.Error("GetLikers failed", "err", err)
		return nil, nil, svcErr.Map(err)
	}
	return mapLikers(swipes), next, nil
}

// ListNewLikedYou returns users who liked uid and were not yet liked back.
func (s *Service) ListNewLikedYou(ctx context.Context, uid string, paginationToken *string) ([]Liker, *string, error) {
	swipes, next, err := s.swipeRepo.GetNewLikers(ctx, uid, paginationToken, likersPageSize)
	if err != nil {
		return nil, nil, svcErr.Map(err)
	}
	return mapLikers(swipes), next, nil
}

func mapLikers(swipes []db.Swipe) []Liker {
	likers := make([]Liker, 0, len(swipes))
	for _, sw := range swipes {
		likers = append(likers, Liker{
			UID:       sw.SwiperUID,
			Timestamp: sw.UpdatedAt.UnixMilli(),
		})
	}
	return likers
}

// CountLikedYou returns how many users liked uid.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:uid).
//  2. On cache miss or parse error, falls back to the DB.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, uid string) (uint64, error) {
	key := s.appCtx.RedisCache.KeyForLikeCount(uid)

	if cached, _ := s.appCtx.RedisCache.Get(ctx, key); cached != "" {
		if n, err := strconv.ParseUint(cached, 10, 64); err == nil {
			// refresh TTL since this user is active
			_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
			return n, nil
		}
	}

	count, err := s.swipeRepo.CountLikers(ctx, uid)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	_ = s.appCtx.RedisCache.Set(ctx, key, strconv.FormatInt(count, 10), time.Hour)
	return uint64(count), nil
}

// SaveFilters stores a user's discovery criteria as an explicit per-user
// document with its own lifecycle (the TTL), not process-global state.
func (s *Service) SaveFilters(ctx context.Context, uid string, f Filters) error {
	data, err := json.Marshal(f)
	if err != nil {
		return svcErr.Map(err)
	}
	key := s.appCtx.RedisCache.KeyForFilters(uid)
	if err := s.appCtx.RedisCache.Set(ctx, key, data, filtersTTL); err != nil {
		return svcErr.Map(err)
	}
	return nil
}

// LoadFilters returns the saved criteria, or zero-value Filters when none.
func (s *Service) LoadFilters(ctx context.Context, uid string) (Filters, error) {
	key := s.appCtx.RedisCache.KeyForFilters(uid)
	cached, err := s.appCtx.RedisCache.Get(ctx, key)
	if err != nil {
		return Filters{}, svcErr.Map(err)
	}
	if cached == "" {
		return Filters{}, nil
	}

	var f Filters
	if err := json.Unmarshal([]byte(cached), &f); err != nil {
		s.appCtx.Logger.Warn("discarding malformed saved filters", "uid", uid, "err", err)
		return Filters{}, nil
	}
	return f, nil
}

// GetProfile returns the profile for uid, nil-safe for first-time users.
func (s *Service) GetProfile(ctx context.Context, uid string) (*db.Profile, error) {
	p, err := s.profileRepo.Get(ctx, uid)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return p, nil
}

// UpdateProfile merge-patches the caller's profile, creating it on first
// write. UID is taken from the authenticated caller and is immutable.
func (s *Service) UpdateProfile(ctx context.Context, uid string, patch repository.ProfilePatch) error {
	if err := s.profileRepo.Upsert(ctx, uid, patch); err != nil {
		s.appCtx.Logger.Error("profile upsert failed", "uid", uid, "err", err)
		return svcErr.Map(err)
	}
	return nil
}
