package db

import (
	"time"
)

// Swipe directions. A block is recorded as a terminal pass.
const (
	DirLike = "like"
	DirPass = "pass"
)

// Profile is a flatmate-seeker profile. UID is assigned by the external auth
// provider and is immutable; writes elsewhere in the codebase are merge
// patches, never full overwrites.
type Profile struct {
	UID          string    `gorm:"primaryKey;size:64" json:"uid"`
	Name         string    `gorm:"size:128" json:"name"`
	Age          int       `json:"age"`
	Bio          string    `gorm:"type:text" json:"bio"`
	Budget       int64     `gorm:"index" json:"budget"`
	Location     string    `gorm:"size:128;index" json:"location"`
	Tags         []string  `gorm:"type:text;serializer:json" json:"tags"`
	AvatarURL    string    `gorm:"size:512" json:"avatar_url"`
	LastActiveAt time.Time `gorm:"index" json:"last_active_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Swipe records one user's like/pass verdict on another.
//
// Composite PK: (SwiperUID, TargetUID)
//   - Ensures a single row per ordered pair (overwrite guarantee).
//
// Indexes:
//   - idx_swiper_updated(swiper_uid, updated_at DESC)
//     Optimizes the capped swiped-set query.
//   - idx_target_dir_updated(target_uid, dir, updated_at DESC, swiper_uid)
//     Optimizes "who liked me" lists with pagination.
type Swipe struct {
	SwiperUID string    `gorm:"primaryKey;size:64;index:idx_swiper_updated,priority:1"`
	TargetUID string    `gorm:"primaryKey;size:64;index:idx_target_dir_updated,priority:1"`
	Dir       string    `gorm:"size:8;not null;index:idx_target_dir_updated,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_swiper_updated,priority:2,sort:desc;index:idx_target_dir_updated,priority:3,sort:desc"`
}

// Group is the canonical conversation unit between two or more users.
//
// Name is nullable: a null name means "derive the display name from the other
// member's profile at render time" (two-member groups only).
//
// PairKey is set only for match-created two-member groups: the two uids sorted
// and joined, under a unique index. Together with the creation transaction it
// guarantees at most one group per mutual-like pair.
type Group struct {
	ID            string     `gorm:"primaryKey;size:36"`
	Name          *string    `gorm:"size:128"`
	PairKey       *string    `gorm:"size:130;uniqueIndex"`
	LastMessage   string     `gorm:"size:1024"`
	LastSender    string     `gorm:"size:64"`
	LastTimestamp time.Time  `gorm:"index"`
	LastNotified  *time.Time
	CreatedAt     time.Time  `gorm:"autoCreateTime"`

	Members []GroupMember `gorm:"foreignKey:GroupID"`
}

// GroupMember is one membership row; Pos preserves the member ordering the
// group was created with.
type GroupMember struct {
	GroupID string `gorm:"primaryKey;size:36"`
	UID     string `gorm:"primaryKey;size:64;index:idx_member_uid"`
	Pos     int
}

// Message is append-only chat history under its owning group. Received stays
// null until the read-receipt flow acknowledges it, and is set at most once.
type Message struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	GroupID   string     `gorm:"size:36;index:idx_group_ts,priority:1" json:"group_id"`
	Sender    string     `gorm:"size:64" json:"sender"`
	Body      string     `gorm:"type:text" json:"body"`
	Timestamp time.Time  `gorm:"index:idx_group_ts,priority:2" json:"timestamp"`
	Received  *time.Time `json:"received"`
}

// Property is a rental listing posted by a user.
type Property struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerUID    string    `gorm:"size:64;index" json:"owner_uid"`
	Title       string    `gorm:"size:256" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Area        string    `gorm:"size:128;index" json:"area"`
	Rent        int64     `gorm:"index" json:"rent"`
	ImageURLs   []string  `gorm:"type:text;serializer:json" json:"image_urls"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SupportTicket is a user-filed support request.
type SupportTicket struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UID       string    `gorm:"size:64;index" json:"uid"`
	Subject   string    `gorm:"size:256" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	Status    string    `gorm:"size:16;default:open" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DeviceToken maps a device push token to its owning user. Keyed by token:
// re-registering the same token for a new user steals it from the old one.
type DeviceToken struct {
	Token     string    `gorm:"primaryKey;size:255"`
	UID       string    `gorm:"size:64;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
