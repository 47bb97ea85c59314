package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tush00nka/phonechat/internal/model"
)

func ptr(s string) *string { return &s }

// newTestDB opens an in-memory sqlite database with the production schema.
// Every timestamp gorm assigns is one millisecond after the previous one.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	var mu sync.Mutex
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Millisecond)
			return clock
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUsers(t *testing.T, users UserRepository, phones ...string) []*model.User {
	t.Helper()

	out := make([]*model.User, 0, len(phones))
	for _, p := range phones {
		u := &model.User{Phone: p}
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
		out = append(out, u)
	}
	return out
}

func TestUserRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))

	alice := createUsers(t, users, "79990000001")[0]
	if alice.ID == "" {
		t.Fatal("expected id from BeforeCreate")
	}

	err := users.Create(ctx, &model.User{Phone: "79990000001"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := users.FindByPhone(ctx, "79990000001")
	if err != nil || got.ID != alice.ID {
		t.Fatalf("find by phone: %+v, %v", got, err)
	}
	if _, err := users.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ok, err := users.Exists(ctx, alice.ID)
	if err != nil || !ok {
		t.Fatalf("exists: %v, %v", ok, err)
	}

	alice.Name = ptr("Alice")
	if err := users.Update(ctx, alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	found, err := users.FindByIDs(ctx, []string{alice.ID, "missing"})
	if err != nil || len(found) != 1 || found[0].Name == nil || *found[0].Name != "Alice" {
		t.Fatalf("find by ids: %+v, %v", found, err)
	}
}

func TestUserRepository_Search(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(newTestDB(t))

	for _, u := range []*model.User{
		{Phone: "79990000003", Name: ptr("Bob")},
		{Phone: "79990000002", Name: ptr("Alice")},
		{Phone: "79990000001", Name: ptr("Alice")},
		{Phone: "79990000004"},
		{Phone: "79990000009", Name: ptr("Me")},
		{Phone: "79990000005", Name: ptr("50% off")},
		{Phone: "79990000006", Name: ptr("500 off")},
		{Phone: "79990000007", Name: ptr("a_b")},
		{Phone: "79990000008", Name: ptr("axb")},
	} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	me, _ := users.FindByPhone(ctx, "79990000009")

	phonesOf := func(found []*model.User) []string {
		var phones []string
		for _, u := range found {
			phones = append(phones, u.Phone)
		}
		return phones
	}

	tests := []struct {
		name   string
		prompt string
		limit  int
		want   []string
	}{
		{"ordered by name then phone", "7999000000", 4, []string{"79990000004", "79990000005", "79990000006", "79990000001"}},
		{"case insensitive name", "ALICE", 10, []string{"79990000001", "79990000002"}},
		{"percent is literal", "50%", 10, []string{"79990000005"}},
		{"underscore is literal", "a_b", 10, []string{"79990000007"}},
		{"excludes requester", "Me", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := users.Search(ctx, me.ID, tt.prompt, tt.limit)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if got := phonesOf(found); !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageRepository_Conversation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	messages := NewMessageRepository(db)

	u := createUsers(t, users, "79990000001", "79990000002", "79990000003")
	a, b, c := u[0].ID, u[1].ID, u[2].ID

	for i := 0; i < 120; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		msg := &model.Message{SenderID: from, ReceiverID: ptr(to), Text: ptr(fmt.Sprint(i))}
		if err := messages.Create(ctx, msg); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := messages.Create(ctx, &model.Message{SenderID: a, ReceiverID: ptr(c), Text: ptr("other")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := messages.Create(ctx, &model.Message{SenderID: a, Text: ptr("legacy")}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ab, err := messages.ListConversation(ctx, a, b, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ab) != 100 {
		t.Fatalf("expected 100 messages, got %d", len(ab))
	}
	if *ab[0].Text != "20" || *ab[99].Text != "119" {
		t.Fatalf("expected newest 100 oldest first, got %s..%s", *ab[0].Text, *ab[99].Text)
	}
	for i := 1; i < len(ab); i++ {
		if ab[i].CreatedAt.Before(ab[i-1].CreatedAt) {
			t.Fatalf("not ascending at %d", i)
		}
	}
	if ab[0].Sender == nil || ab[0].Sender.ID != a {
		t.Fatalf("expected preloaded sender, got %+v", ab[0].Sender)
	}

	ba, err := messages.ListConversation(ctx, b, a, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	idsOf := func(ms []model.Message) []string {
		ids := make([]string, len(ms))
		for i, m := range ms {
			ids[i] = m.ID
		}
		return ids
	}
	if !slices.Equal(idsOf(ab), idsOf(ba)) {
		t.Fatal("listing must not depend on argument order")
	}

	headers, err := messages.ListHeaders(ctx, c)
	if err != nil || len(headers) != 1 || headers[0].SenderID != a {
		t.Fatalf("headers: %+v, %v", headers, err)
	}

	deleted, err := messages.DeleteConversation(ctx, b, a)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 120 {
		t.Fatalf("expected 120 deleted, got %d", deleted)
	}

	if left, _ := messages.ListConversation(ctx, a, b, 100); len(left) != 0 {
		t.Fatalf("expected empty pair, got %d", len(left))
	}
	if ac, _ := messages.ListConversation(ctx, a, c, 100); len(ac) != 1 {
		t.Fatalf("other pair touched: %d", len(ac))
	}
	var legacy int64
	db.Model(&model.Message{}).Where("receiver_id IS NULL").Count(&legacy)
	if legacy != 1 {
		t.Fatalf("legacy message touched: %d", legacy)
	}
}

func TestVerificationRepository_MarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	codes := NewVerificationRepository(newTestDB(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	code := &model.VerificationCode{Phone: "79991234567", Code: "hash", ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now}
	if err := codes.Create(ctx, code); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := codes.MarkUsed(ctx, code.ID, now)
			if err != nil {
				t.Errorf("mark used: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful MarkUsed, got %d", wins)
	}
	if active, _ := codes.FindActive(ctx, "79991234567", now, 0); len(active) != 0 {
		t.Fatalf("used code still active: %d", len(active))
	}
	if n, _ := codes.DeleteStale(ctx, "79991234567", now); n != 1 {
		t.Fatalf("expected used code collected, got %d", n)
	}
}

func TestVerificationRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	codes := NewVerificationRepository(newTestDB(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	edge := &model.VerificationCode{Phone: "79991234567", Code: "hash", ExpiresAt: now, CreatedAt: now.Add(-10 * time.Minute)}
	if err := codes.Create(ctx, edge); err != nil {
		t.Fatalf("create: %v", err)
	}
	var live []*model.VerificationCode
	for i := 0; i < 7; i++ {
		c := &model.VerificationCode{
			Phone:     "79991234567",
			Code:      "hash",
			ExpiresAt: now.Add(time.Minute),
			CreatedAt: now.Add(-time.Duration(7-i) * time.Second),
		}
		if err := codes.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		live = append(live, c)
	}

	if ok, _ := codes.MarkUsed(ctx, edge.ID, now); ok {
		t.Fatal("code expiring at now must not be redeemable")
	}

	active, err := codes.FindActive(ctx, "79991234567", now, 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(active) != 5 || active[0].ID != live[6].ID || active[4].ID != live[2].ID {
		t.Fatalf("expected the 5 newest live codes, got %d", len(active))
	}

	if n, _ := codes.DeleteStale(ctx, "79991234567", now); n != 1 {
		t.Fatalf("expected the code expiring at now to be collected, got %d", n)
	}
	if all, _ := codes.FindActive(ctx, "79991234567", now, 0); len(all) != 7 {
		t.Fatalf("live codes must survive cleanup, got %d", len(all))
	}
}
