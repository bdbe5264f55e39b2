package chat

import (
	"context"
	"time"

	"github.com/flatfinder/flatfinder/internal/app"
	"github.com/flatfinder/flatfinder/internal/db"
	svcErr "github.com/flatfinder/flatfinder/internal/errors"
	"github.com/flatfinder/flatfinder/internal/msgstore"
	"github.com/flatfinder/flatfinder/internal/repository"
	"github.com/flatfinder/flatfinder/internal/utils/avatar"
	"github.com/flatfinder/flatfinder/internal/ws"
)

const (
	historyPageSize = 100
	// at most one push trigger per group inside this window
	notifyThrottle = 30 * time.Second
)

// Entry is one row of the chat list: the group plus its denormalized
// last-message projection, with a null group name already resolved to the
// counterpart's live profile name.
type Entry struct {
	GroupID       string    `json:"group_id"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatar_url"`
	Members       []string  `json:"members"`
	LastMessage   string    `json:"last_message"`
	LastSender    string    `json:"last_sender"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// Service implements the conversation registry and message flow.
type Service struct {
	appCtx      *app.AppContext
	groupRepo   *repository.GroupRepository
	profileRepo *repository.ProfileRepository
	swipeRepo   *repository.SwipeRepository
	supportRepo *repository.SupportRepository
}

// NewService creates a new chat service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		groupRepo:   repository.NewGroupRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		swipeRepo:   repository.NewSwipeRepository(appCtx.DB),
		supportRepo: repository.NewSupportRepository(appCtx.DB),
	}
}

// CreateGroup creates a conversation containing the creator and the given
// members. Name may be nil; two-member groups then render the counterpart's
// profile name.
func (s *Service) CreateGroup(ctx context.Context, creator string, memberUIDs []string, name *string) (string, error) {
	uids := []string{creator}
	seen := map[string]struct{}{creator: {}}
	for _, uid := range memberUIDs {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		uids = append(uids, uid)
	}
	if len(uids) < 2 {
		return "", svcErr.InvalidArgument("a group needs at least two members")
	}

	groupID, err := s.groupRepo.CreateGroup(ctx, uids, name)
	if err != nil {
		s.appCtx.Logger.Error("CreateGroup failed", "err", err)
		return "", svcErr.Map(err)
	}

	if s.appCtx.Hub != nil {
		s.appCtx.Hub.SendToUsers(uids, ws.Event{
			Type:    ws.EventGroupUpdated,
			Payload: map[string]string{"group_id": groupID},
		})
	}
	return groupID, nil
}

// ChatList returns uid's conversations, most recent activity first. Null
// group names are resolved against current profiles on every call, so a
// renamed user's conversations update automatically.
func (s *Service) ChatList(ctx context.Context, uid string) ([]Entry, error) {
	groups, err := s.groupRepo.ListForUser(ctx, uid)
	if err != nil {
		s.appCtx.Logger.Error("ListForUser failed", "uid", uid, "err", err)
		return nil, svcErr.Map(err)
	}

	// collect counterpart uids for the null-named two-member groups
	var counterparts []string
	for _, g := range groups {
		if g.Name == nil && len(g.Members) == 2 {
			counterparts = append(counterparts, otherMember(g.Members, uid))
		}
	}
	names, err := s.profileRepo.NamesFor(ctx, counterparts)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	entries := make([]Entry, 0, len(groups))
	for _, g := range groups {
		entry := Entry{
			GroupID:       g.ID,
			LastMessage:   g.LastMessage,
			LastSender:    g.LastSender,
			LastTimestamp: g.LastTimestamp,
		}
		for _, m := range g.Members {
			entry.Members = append(entry.Members, m.UID)
		}

		switch {
		case g.Name != nil:
			entry.Name = *g.Name
			entry.AvatarURL = avatar.Fallback(g.ID)
		case len(g.Members) == 2:
			other := otherMember(g.Members, uid)
			entry.Name = names[other]
			if entry.Name == "" {
				entry.Name = "Unknown"
			}
			entry.AvatarURL = avatar.Fallback(other)
		default:
			entry.Name = "Group chat"
			entry.AvatarURL = avatar.Fallback(g.ID)
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func otherMember(members []db.GroupMember, uid string) string {
	for _, m := range members {
		if m.UID != uid {
			return m.UID
		}
	}
	return uid
}

// SendMessage appends a message and updates the group projection in one
// transaction, then fans the event out to live subscribers.
func (s *Service) SendMessage(ctx context.Context, senderUID, groupID, body string) (*db.Message, error) {
	if body == "" {
		return nil, svcErr.InvalidArgument("message body must not be empty")
	}

	group, err := s.groupRepo.Get(ctx, groupID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if group == nil {
		return nil, svcErr.NotFound("group not found")
	}
	if !isMember(group.Members, senderUID) {
		return nil, svcErr.New(svcErr.CodePermissionDenied, "sender is not a member of this group")
	}

	msg, err := s.groupRepo.AppendMessage(ctx, groupID, senderUID, body)
	if err != nil {
		s.appCtx.Logger.Error("AppendMessage failed", "group", groupID, "err", err)
		return nil, svcErr.Map(err)
	}

	if s.appCtx.Hub != nil {
		s.appCtx.Hub.SendToGroup(groupID, ws.Event{Type: ws.EventNewMessage, Payload: msg})
		memberUIDs := make([]string, 0, len(group.Members))
		for _, m := range group.Members {
			memberUIDs = append(memberUIDs, m.UID)
		}
		s.appCtx.Hub.SendToUsers(memberUIDs, ws.Event{
			Type:    ws.EventGroupUpdated,
			Payload: map[string]string{"group_id": groupID},
		})
	}

	s.maybeTriggerPush(ctx, group, msg)
	return msg, nil
}

// maybeTriggerPush throttles the push-notification trigger to one per group
// per window. Delivery itself belongs to the external messaging provider;
// this only stamps last_notified and logs the trigger.
func (s *Service) maybeTriggerPush(ctx context.Context, group *db.Group, msg *db.Message) {
	key := s.appCtx.RedisCache.KeyForGroupNotify(group.ID)
	won, err := s.appCtx.RedisCache.SetNX(ctx, key, msg.ID, notifyThrottle)
	if err != nil {
		s.appCtx.Logger.Warn("notify throttle check failed", "group", group.ID, "err", err)
		return
	}
	if !won {
		return
	}
	if err := s.groupRepo.UpdateLastNotified(ctx, group.ID, msg.Timestamp); err != nil {
		s.appCtx.Logger.Warn("failed to stamp last_notified", "group", group.ID, "err", err)
		return
	}

	// count the devices the external provider would reach
	devices := 0
	for _, m := range group.Members {
		if m.UID == msg.Sender {
			continue
		}
		tokens, err := s.supportRepo.TokensForUser(ctx, m.UID)
		if err != nil {
			s.appCtx.Logger.Warn("token lookup failed", "uid", m.UID, "err", err)
			continue
		}
		devices += len(tokens)
	}
	s.appCtx.Logger.Info("push trigger", "group", group.ID, "sender", msg.Sender, "devices", devices)
}

// Messages returns up to limit messages of the group, oldest to newest. The
// fetched page goes through the ordered store, the same structure the live
// feed appends into, so initial history and streamed messages sort alike.
func (s *Service) Messages(ctx context.Context, uid, groupID string, limit int) ([]db.Message, error) {
	if limit <= 0 {
		limit = historyPageSize
	}

	group, err := s.groupRepo.Get(ctx, groupID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if group == nil {
		return nil, svcErr.NotFound("group not found")
	}
	if !isMember(group.Members, uid) {
		return nil, svcErr.New(svcErr.CodePermissionDenied, "not a member of this group")
	}

	rows, err := s.groupRepo.ListMessages(ctx, groupID, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	store := msgstore.New()
	store.AddMany(rows)
	return store.Messages(groupID), nil
}

// MarkReceived acknowledges a message once and notifies subscribers.
func (s *Service) MarkReceived(ctx context.Context, uid, groupID, messageID string) error {
	if err := s.groupRepo.MarkReceived(ctx, groupID, messageID); err != nil {
		return svcErr.Map(err)
	}
	if s.appCtx.Hub != nil {
		s.appCtx.Hub.SendToGroup(groupID, ws.Event{
			Type:    ws.EventMessageRead,
			Payload: map[string]string{"group_id": groupID, "message_id": messageID, "reader": uid},
		})
	}
	return nil
}

// BlockUser records a terminal pass from the blocker toward every other
// member of the group, then deletes the group. Messages are orphaned, not
// erased. A missing group is a logged no-op.
func (s *Service) BlockUser(ctx context.Context, blockerUID, groupID string) error {
	group, err := s.groupRepo.Get(ctx, groupID)
	if err != nil {
		return svcErr.Map(err)
	}
	if group == nil {
		s.appCtx.Logger.Warn("block on missing group, nothing to do", "group", groupID)
		return nil
	}
	if !isMember(group.Members, blockerUID) {
		return svcErr.New(svcErr.CodePermissionDenied, "not a member of this group")
	}

	memberUIDs := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		memberUIDs = append(memberUIDs, m.UID)
		if m.UID == blockerUID {
			continue
		}
		// overwrites any prior like: the block is a terminal pass
		if err := s.swipeRepo.RecordSwipe(ctx, blockerUID, m.UID, db.DirPass); err != nil {
			return svcErr.Map(err)
		}
	}

	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		s.appCtx.Logger.Error("group delete failed", "group", groupID, "err", err)
		return svcErr.Map(err)
	}

	if s.appCtx.Hub != nil {
		s.appCtx.Hub.SendToUsers(memberUIDs, ws.Event{
			Type:    ws.EventGroupDeleted,
			Payload: map[string]string{"group_id": groupID},
		})
	}

	s.appCtx.Logger.Info("user blocked", "blocker", blockerUID, "group", groupID)
	return nil
}

func isMember(members []db.GroupMember, uid string) bool {
	for _, m := range members {
		if m.UID == uid {
			return true
		}
	}
	return false
}
