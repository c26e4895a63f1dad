package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fintrack/internal/device"
	"fintrack/internal/entity"

	"github.com/google/uuid"
)

func fingerprint(id string) device.Fingerprint {
	return device.Fingerprint{DeviceID: id, DeviceName: "Test Device", DeviceType: entity.DeviceDesktop}
}

func TestSessionServiceUpsertEvictsSixthDevice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("six@example.com")

	for i := 0; i < 6; i++ {
		if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint(fmt.Sprintf("dev-%d", i))); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		h.clock.Advance(time.Minute)
	}

	stored := h.store.sessionsOf(user.ID)
	if len(stored) != entity.MaxSessions {
		t.Fatalf("len = %d, want %d", len(stored), entity.MaxSessions)
	}
	if stored.Contains("dev-0") {
		t.Fatal("first device should have been evicted")
	}
}

func TestSessionServiceUpsertUnknownUser(t *testing.T) {
	h := newHarness()
	_, err := h.sessions.Upsert(context.Background(), uuid.New(), fingerprint("a"))
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestSessionServiceUpsertSameDeviceKeepsLoginTime(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("same@example.com")

	first, err := h.sessions.Upsert(ctx, user.ID, fingerprint("a"))
	if err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Hour)
	second, err := h.sessions.Upsert(ctx, user.ID, fingerprint("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !second.LoginTime.Equal(first.LoginTime) {
		t.Fatalf("LoginTime changed: %v -> %v", first.LoginTime, second.LoginTime)
	}
	if !second.LastActive.Equal(h.clock.Now()) {
		t.Fatalf("LastActive = %v, want %v", second.LastActive, h.clock.Now())
	}
	if n := len(h.store.sessionsOf(user.ID)); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}

func TestSessionServiceRemoveOthers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("others@example.com")
	for _, id := range []string{"A", "B", "C"} {
		if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}

	found, err := h.sessions.RemoveOthers(ctx, user.ID, "A")
	if err != nil || !found {
		t.Fatalf("RemoveOthers = %v, %v", found, err)
	}
	stored := h.store.sessionsOf(user.ID)
	if len(stored) != 1 || stored[0].DeviceID != "A" {
		t.Fatalf("remaining sessions = %+v", stored)
	}
}

func TestSessionServiceRemove(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("remove@example.com")
	for _, id := range []string{"A", "B"} {
		if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}

	found, err := h.sessions.Remove(ctx, user.ID, "B")
	if err != nil || !found {
		t.Fatalf("Remove = %v, %v", found, err)
	}
	if exists, _ := h.sessions.Exists(ctx, user.ID, "B"); exists {
		t.Fatal("B should be gone")
	}
	if exists, _ := h.sessions.Exists(ctx, user.ID, "A"); !exists {
		t.Fatal("A should remain")
	}

	found, err = h.sessions.Remove(ctx, uuid.New(), "A")
	if err != nil || found {
		t.Fatalf("Remove for unknown user = %v, %v", found, err)
	}
}

func TestSessionServiceListRefreshesActivity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("list@example.com")

	if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint("old")); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(45 * time.Minute)
	if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint("new")); err != nil {
		t.Fatal(err)
	}
	writes := h.store.writes

	list, err := h.sessions.List(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].DeviceID != "new" {
		t.Fatalf("list not newest first: %+v", list)
	}
	if !list[0].IsActive || list[1].IsActive {
		t.Fatalf("activity flags wrong: %+v", list)
	}
	if h.store.writes != writes+1 {
		t.Fatalf("changed flags should be persisted once, writes = %d", h.store.writes-writes)
	}

	if _, err := h.sessions.List(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	if h.store.writes != writes+1 {
		t.Fatal("unchanged flags should not be persisted")
	}
}

func TestSessionServiceTouchIsBestEffort(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("touch@example.com")
	if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint("a")); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(10 * time.Minute)
	h.sessions.Touch(ctx, user.ID, "a")
	if got := h.store.sessionsOf(user.ID)[0].LastActive; !got.Equal(h.clock.Now()) {
		t.Fatalf("LastActive = %v, want %v", got, h.clock.Now())
	}

	h.store.saveErr = errors.New("db down")
	h.sessions.Touch(ctx, user.ID, "a")
	h.sessions.Touch(ctx, user.ID, "missing")
	h.sessions.Touch(ctx, uuid.New(), "a")
}

func TestSessionServiceSweepStaleAcrossUsers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	mixed := h.store.seedUser("mixed@example.com")
	idle := h.store.seedUser("idle@example.com")
	active := h.store.seedUser("active@example.com")

	for _, id := range []string{"old-laptop", "old-phone"} {
		if _, err := h.sessions.Upsert(ctx, mixed.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.sessions.Upsert(ctx, idle.ID, fingerprint("forgotten")); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(8 * 24 * time.Hour)
	if _, err := h.sessions.Upsert(ctx, mixed.ID, fingerprint("desk")); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"tablet", "tv"} {
		if _, err := h.sessions.Upsert(ctx, active.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}
	activeWrites := h.store.writesFor(active.ID)

	removed, err := h.sessions.SweepStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	tests := []struct {
		name string
		user uuid.UUID
		want []string
	}{
		{"mixed", mixed.ID, []string{"desk"}},
		{"idle", idle.ID, nil},
		{"active", active.ID, []string{"tablet", "tv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := h.store.sessionsOf(tt.user)
			if len(stored) != len(tt.want) {
				t.Fatalf("sessions = %+v, want %v", stored, tt.want)
			}
			for _, id := range tt.want {
				if !stored.Contains(id) {
					t.Fatalf("%s missing from %+v", id, stored)
				}
			}
		})
	}
	if got := h.store.writesFor(active.ID); got != activeWrites {
		t.Fatalf("user without stale sessions was rewritten: writes %d -> %d", activeWrites, got)
	}
}

// A touch that read the collection before a concurrent remove writes the old
// collection back. The removed device is live again until it is removed once more.
func TestSessionServiceTouchCanRestoreRemovedSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("race@example.com")
	for _, id := range []string{"A", "B"} {
		if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}

	h.store.afterFind = func() {
		found, err := h.sessions.Remove(ctx, user.ID, "B")
		if err != nil || !found {
			t.Errorf("Remove(B) = %v, %v", found, err)
		}
	}
	h.clock.Advance(time.Minute)
	h.sessions.Touch(ctx, user.ID, "A")

	exists, err := h.sessions.Exists(ctx, user.ID, "B")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("touch no longer overwrites a concurrent remove; update the SessionService race notes")
	}
}

func TestSessionServiceRemoveAll(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	user := h.store.seedUser("all@example.com")
	for _, id := range []string{"A", "B"} {
		if _, err := h.sessions.Upsert(ctx, user.ID, fingerprint(id)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.sessions.RemoveAll(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	if n := len(h.store.sessionsOf(user.ID)); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
}
