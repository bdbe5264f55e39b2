package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedAreas = []string{"CBD", "Newtown", "Surry Hills", "Bondi"}

// SeedTestData resets the database and populates it with demo profiles,
// swipe history and a few matched conversations.
//
// Behavior:
//  1. Clears existing rows in all tables.
//  2. Creates 20 profiles spread across areas with budgets 200-900.
//  3. Generates ~200 swipes with ~70% likes; every 3rd pair is forced mutual
//     and gets a group with a couple of messages.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	wipe := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&Message{}, &GroupMember{}, &Group{}, &Swipe{}, &Property{}, &SupportTicket{}, &DeviceToken{}, &Profile{}} {
		if err := wipe.Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", model, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Seed profiles ---
	uids := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		uid := fmt.Sprintf("uid-%02d", i)
		p := Profile{
			UID:          uid,
			Name:         fmt.Sprintf("Flatmate %d", i),
			Age:          20 + r.Intn(15),
			Bio:          "Looking for a place and decent people.",
			Budget:       int64(200 + 50*r.Intn(15)),
			Location:     seedAreas[i%len(seedAreas)],
			Tags:         []string{"tidy", "nonsmoker"},
			LastActiveAt: time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
		uids = append(uids, uid)
	}
	log.Println("Seeded 20 profiles.")

	// --- Seed swipes + matches ---
	counter := 0
	for _, swiper := range uids {
		for j := 0; j < 10; j++ {
			target := uids[r.Intn(len(uids))]
			if target == swiper {
				continue
			}

			dir := DirPass
			if r.Intn(100) < 70 {
				dir = DirLike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				dir = DirLike
				recip := Swipe{SwiperUID: target, TargetUID: swiper, Dir: DirLike}
				db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "swiper_uid"}, {Name: "target_uid"}},
					DoUpdates: clause.AssignmentColumns([]string{"dir", "updated_at"}),
				}).Create(&recip)
			}

			s := Swipe{SwiperUID: swiper, TargetUID: target, Dir: dir}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "swiper_uid"}, {Name: "target_uid"}},
				DoUpdates: clause.AssignmentColumns([]string{"dir", "updated_at"}),
			}).Create(&s).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}

			// give forced mutual pairs a conversation
			if counter%3 == 0 && dir == DirLike {
				if err := seedConversation(db, swiper, target); err != nil {
					return err
				}
			}

			counter++
		}
	}
	log.Println("Seeded swipes and conversations.")

	return nil
}

func seedConversation(db *gorm.DB, a, b string) error {
	pair := a + "|" + b
	if b < a {
		pair = b + "|" + a
	}

	var existing int64
	db.Model(&Group{}).Where("pair_key = ?", pair).Count(&existing)
	if existing > 0 {
		return nil
	}

	now := time.Now()
	g := Group{
		ID:            uuid.NewString(),
		PairKey:       &pair,
		LastMessage:   "hey, still looking?",
		LastSender:    a,
		LastTimestamp: now,
	}
	if err := db.Create(&g).Error; err != nil {
		return fmt.Errorf("failed to seed group: %w", err)
	}
	members := []GroupMember{
		{GroupID: g.ID, UID: a, Pos: 0},
		{GroupID: g.ID, UID: b, Pos: 1},
	}
	if err := db.Create(&members).Error; err != nil {
		return fmt.Errorf("failed to seed members: %w", err)
	}
	msgs := []Message{
		{ID: uuid.NewString(), GroupID: g.ID, Sender: b, Body: "we matched!", Timestamp: now.Add(-time.Minute)},
		{ID: uuid.NewString(), GroupID: g.ID, Sender: a, Body: "hey, still looking?", Timestamp: now},
	}
	if err := db.Create(&msgs).Error; err != nil {
		return fmt.Errorf("failed to seed messages: %w", err)
	}
	return nil
}
