package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/vcporto/sketchdash/internal/game"
)

func newRedisRegistry(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	reg, err := NewRedis(fmt.Sprintf("redis://%s/0", mr.Addr()), ttl, nil)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg, mr
}

func testRoom(code string) *game.Room {
	room, _ := game.NewRoom(code, "Ana", 2, time.Now())
	return room
}

func TestMemoryCreateGetDelete(t *testing.T) {
	reg := NewMemory(time.Hour, nil)
	t.Cleanup(func() { reg.Close() })
	ctx := context.Background()

	if err := reg.Create(ctx, testRoom("AAAAA")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.Create(ctx, testRoom("AAAAA")); !errors.Is(err, game.ErrRoomExists) {
		t.Fatalf("duplicate Create: got %v, want ErrRoomExists", err)
	}

	room, err := reg.Get(ctx, "AAAAA")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if room.Code != "AAAAA" || room.PlayerCount() != 1 {
		t.Fatalf("unexpected snapshot: code=%q players=%d", room.Code, room.PlayerCount())
	}

	if err := reg.Delete(ctx, "AAAAA"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := reg.Get(ctx, "AAAAA"); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrRoomNotFound", err)
	}
}

func TestMemoryUpdateFailureLeavesSnapshot(t *testing.T) {
	reg := NewMemory(time.Hour, nil)
	t.Cleanup(func() { reg.Close() })
	ctx := context.Background()

	if err := reg.Create(ctx, testRoom("BBBBB")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("boom")
	_, err := reg.Update(ctx, "BBBBB", func(r *game.Room) error {
		r.AddPlayer("Bia", "")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update: got %v, want boom", err)
	}

	room, err := reg.Get(ctx, "BBBBB")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if room.PlayerCount() != 1 {
		t.Fatalf("failed update leaked: players=%d, want 1", room.PlayerCount())
	}
}

func TestMemoryExpire(t *testing.T) {
	reg := NewMemory(time.Minute, nil)
	t.Cleanup(func() { reg.Close() })
	ctx := context.Background()

	if err := reg.Create(ctx, testRoom("CCCCC")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	reg.expire(time.Now().Add(2 * time.Minute))
	if _, err := reg.Get(ctx, "CCCCC"); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("Get after expiry: got %v, want ErrRoomNotFound", err)
	}
}

func TestRedisCreateAndSnapshotRoundTrip(t *testing.T) {
	reg, _ := newRedisRegistry(t, time.Hour)
	ctx := context.Background()

	orig := testRoom("DDDDD")
	if err := reg.Create(ctx, orig); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.Create(ctx, testRoom("DDDDD")); !errors.Is(err, game.ErrRoomExists) {
		t.Fatalf("duplicate Create: got %v, want ErrRoomExists", err)
	}

	room, err := reg.Get(ctx, "DDDDD")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if room.HostID != orig.HostID || len(room.Teams) != len(orig.Teams) {
		t.Fatalf("snapshot mismatch after round trip")
	}
	if room.Phase != game.PhaseIdle {
		t.Fatalf("phase = %q, want idle", room.Phase)
	}
}

func TestRedisUpdatePersistsAndRefreshesTTL(t *testing.T) {
	reg, mr := newRedisRegistry(t, time.Hour)
	ctx := context.Background()

	if err := reg.Create(ctx, testRoom("EEEEE")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.FastForward(30 * time.Minute)

	room, err := reg.Update(ctx, "EEEEE", func(r *game.Room) error {
		r.AddPlayer("Bruno", "")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if room.PlayerCount() != 2 {
		t.Fatalf("players = %d, want 2", room.PlayerCount())
	}

	// The write refreshed the TTL, so the original deadline passes
	// without the room dropping.
	mr.FastForward(45 * time.Minute)
	if _, err := reg.Get(ctx, "EEEEE"); err != nil {
		t.Fatalf("Get after TTL refresh: %v", err)
	}

	mr.FastForward(time.Hour)
	if _, err := reg.Get(ctx, "EEEEE"); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("Get after expiry: got %v, want ErrRoomNotFound", err)
	}
}

func TestRedisUpdateMissingRoom(t *testing.T) {
	reg, _ := newRedisRegistry(t, time.Hour)
	_, err := reg.Update(context.Background(), "ZZZZZ", func(r *game.Room) error { return nil })
	if !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("Update missing: got %v, want ErrRoomNotFound", err)
	}
}
