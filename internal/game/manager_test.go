package game_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vcporto/sketchdash/internal/deck"
	"github.com/vcporto/sketchdash/internal/game"
	"github.com/vcporto/sketchdash/internal/registry"
	"github.com/vcporto/sketchdash/pkg/gamedto"
)

type captureNotifier struct {
	mu      sync.Mutex
	updates []*gamedto.RoomView
	cards   [][]string
	ended   []*gamedto.RoundEnded
	winners []*gamedto.Winner
	closed  []string
}

func (c *captureNotifier) RoomUpdated(code string, v *gamedto.RoomView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, v)
}

func (c *captureNotifier) CardDealt(code string, recipients []string, card *gamedto.CardPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards = append(c.cards, recipients)
}

func (c *captureNotifier) RoundEnded(code string, ev *gamedto.RoundEnded) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = append(c.ended, ev)
}

func (c *captureNotifier) WinnerDeclared(code string, ev *gamedto.Winner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.winners = append(c.winners, ev)
}

func (c *captureNotifier) RoomClosed(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, code)
}

type captureArchiver struct {
	mu    sync.Mutex
	saved []string
}

func (a *captureArchiver) SaveResult(ctx context.Context, room *game.Room) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, room.Winner)
	return nil
}

func newTestManager(t *testing.T) (*game.Manager, *captureNotifier) {
	t.Helper()
	reg := registry.NewMemory(time.Hour, nil)
	t.Cleanup(func() { reg.Close() })
	d, err := deck.Load("")
	if err != nil {
		t.Fatalf("deck.Load: %v", err)
	}
	m, err := game.NewManager(reg, d, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	n := &captureNotifier{}
	m.AttachNotifier(n)
	return m, n
}

func TestCreateRoomCode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	room, host, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if len(room.Code) != 5 {
		t.Fatalf("code %q, want 5 chars", room.Code)
	}
	for _, r := range room.Code {
		if !strings.ContainsRune("ABCDEFGHJKMNPQRSTUVWXYZ23456789", r) {
			t.Fatalf("code %q uses an ambiguous character %q", room.Code, r)
		}
	}
	if room.HostID != host.ID {
		t.Fatalf("host mismatch")
	}

	got, err := m.Room(ctx, room.Code)
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if got.Code != room.Code {
		t.Fatalf("persisted code %q, want %q", got.Code, room.Code)
	}
}

func TestJoinAndRejoin(t *testing.T) {
	m, n := newTestManager(t)
	ctx := context.Background()

	room, _, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	_, p2, err := m.JoinRoom(ctx, room.Code, "Bia", "")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if _, err := m.Rejoin(ctx, room.Code, p2.ID); err != nil {
		t.Fatalf("Rejoin: %v", err)
	}
	if _, err := m.Rejoin(ctx, room.Code, "stranger"); !errors.Is(err, game.ErrPlayerUnknown) {
		t.Fatalf("Rejoin stranger: got %v, want ErrPlayerUnknown", err)
	}
	if _, _, err := m.JoinRoom(ctx, "ZZZZZ", "Caio", ""); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("JoinRoom missing room: got %v, want ErrRoomNotFound", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.updates) < 2 {
		t.Fatalf("expected room updates for create and join, got %d", len(n.updates))
	}
}

func TestRoundFlowThroughManager(t *testing.T) {
	m, n := newTestManager(t)
	ctx := context.Background()

	room, host, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, _, err := m.JoinRoom(ctx, room.Code, "Bia", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	started, err := m.StartRound(ctx, room.Code, host.ID, 30*time.Second)
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	deadline := *started.Round.EndsAt

	n.mu.Lock()
	if len(n.cards) != 1 || len(n.cards[0]) != 2 {
		t.Fatalf("square 0 is all-play: card fanout %v, want both players", n.cards)
	}
	n.mu.Unlock()

	// A stale deadline is absorbed without ending the round.
	if _, res, err := m.HandleTimeout(ctx, room.Code, deadline.Add(time.Second)); err != nil || res != nil {
		t.Fatalf("stale timeout: res=%+v err=%v", res, err)
	}

	_, res, err := m.MarkCorrect(ctx, room.Code, host.ID)
	if err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}
	if res == nil || res.Reason != "correct" {
		t.Fatalf("result %+v", res)
	}

	// The armed timer now fires for the resolved round.
	if _, res, err := m.HandleTimeout(ctx, room.Code, deadline); err != nil || res != nil {
		t.Fatalf("timeout after resolution: res=%+v err=%v", res, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.ended) != 1 || n.ended[0].Reason != "correct" {
		t.Fatalf("round ended events %+v", n.ended)
	}
}

func TestTimeoutEndsRound(t *testing.T) {
	m, n := newTestManager(t)
	ctx := context.Background()

	room, host, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, _, err := m.JoinRoom(ctx, room.Code, "Bia", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	started, err := m.StartRound(ctx, room.Code, host.ID, 30*time.Second)
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	_, res, err := m.HandleTimeout(ctx, room.Code, *started.Round.EndsAt)
	if err != nil {
		t.Fatalf("HandleTimeout: %v", err)
	}
	if res == nil || res.Reason != "timeout" {
		t.Fatalf("result %+v", res)
	}

	got, err := m.Room(ctx, room.Code)
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if got.Phase != game.PhaseIdle {
		t.Fatalf("phase = %q, want idle", got.Phase)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.ended) != 1 || n.ended[0].Reason != "timeout" {
		t.Fatalf("round ended events %+v", n.ended)
	}
}

func TestWinnerArchivedAndReset(t *testing.T) {
	m, n := newTestManager(t)
	arch := &captureArchiver{}
	m.AttachArchiver(arch)
	ctx := context.Background()

	room, host, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, _, err := m.JoinRoom(ctx, room.Code, "Bia", ""); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	// Push team 1 to the brink, then score.
	for {
		if _, err := m.StartRound(ctx, room.Code, host.ID, 30*time.Second); err != nil {
			t.Fatalf("StartRound: %v", err)
		}
		got, _, err := m.MarkCorrect(ctx, room.Code, host.ID)
		if err != nil {
			t.Fatalf("MarkCorrect: %v", err)
		}
		if got.Phase == game.PhaseFinished {
			break
		}
	}

	n.mu.Lock()
	winners := len(n.winners)
	n.mu.Unlock()
	if winners != 1 {
		t.Fatalf("winner events = %d, want 1", winners)
	}
	arch.mu.Lock()
	saved := len(arch.saved)
	arch.mu.Unlock()
	if saved != 1 {
		t.Fatalf("archived results = %d, want 1", saved)
	}

	reset, err := m.ResetGame(ctx, room.Code, host.ID)
	if err != nil {
		t.Fatalf("ResetGame: %v", err)
	}
	if reset.Phase != game.PhaseIdle || reset.Winner != "" {
		t.Fatalf("reset state: phase=%q winner=%q", reset.Phase, reset.Winner)
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	m, n := newTestManager(t)
	ctx := context.Background()

	room, host, err := m.CreateRoom(ctx, "Ana", 2)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	_, p2, err := m.JoinRoom(ctx, room.Code, "Bia", "")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	left, err := m.Leave(ctx, room.Code, host.ID)
	if err != nil {
		t.Fatalf("Leave host: %v", err)
	}
	if left.HostID != p2.ID {
		t.Fatalf("host = %q, want promotion to %q", left.HostID, p2.ID)
	}

	if _, err := m.Leave(ctx, room.Code, p2.ID); err != nil {
		t.Fatalf("Leave last: %v", err)
	}
	if _, err := m.Room(ctx, room.Code); !errors.Is(err, game.ErrRoomNotFound) {
		t.Fatalf("room should be gone, got %v", err)
	}

	// Leaving a deleted room stays quiet.
	if _, err := m.Leave(ctx, room.Code, p2.ID); err != nil {
		t.Fatalf("Leave after delete: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.closed) != 1 || n.closed[0] != room.Code {
		t.Fatalf("room closed events %v", n.closed)
	}
}
