package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vcporto/sketchdash/internal/deck"
	"github.com/vcporto/sketchdash/pkg/gamedto"
)

// Registry is the injected room table. Update must serialize all
// mutations of one room (per-room lock or optimistic transaction), apply
// fn to a private copy and persist only on fn success, and bump
// LastUpdate / refresh the record's TTL when it persists.
type Registry interface {
	Create(ctx context.Context, room *Room) error
	Get(ctx context.Context, code string) (*Room, error)
	Update(ctx context.Context, code string, fn func(*Room) error) (*Room, error)
	Delete(ctx context.Context, code string) error
	Close() error
}

// Notifier receives the push-binding fan-out after each transition. The
// poll binding runs with the no-op notifier and reads snapshots instead.
type Notifier interface {
	RoomUpdated(code string, view *gamedto.RoomView)
	CardDealt(code string, recipients []string, card *gamedto.CardPayload)
	RoundEnded(code string, ev *gamedto.RoundEnded)
	WinnerDeclared(code string, ev *gamedto.Winner)
	RoomClosed(code string)
}

// Archiver persists finished games. Optional; a nil archiver disables it.
type Archiver interface {
	SaveResult(ctx context.Context, room *Room) error
}

const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 5

	// timeoutSlack delays the deferred trigger slightly past the
	// deadline so a host action landing at the buzzer wins the race.
	timeoutSlack = 250 * time.Millisecond

	timeoutOpBudget = 5 * time.Second
)

// Manager drives every room transition through the registry and fans
// the results out to the notifier.
type Manager struct {
	reg      Registry
	deck     *deck.Deck
	notifier Notifier
	archiver Archiver
	logger   *zap.Logger
}

func NewManager(reg Registry, d *deck.Deck, logger *zap.Logger) (*Manager, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if d == nil {
		return nil, errors.New("deck is required")
	}
	if err := d.Covers(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{reg: reg, deck: d, notifier: nopNotifier{}, logger: logger}, nil
}

// AttachNotifier wires the push binding's fan-out.
func (m *Manager) AttachNotifier(n Notifier) {
	if n != nil {
		m.notifier = n
	}
}

// AttachArchiver wires an optional store for finished games.
func (m *Manager) AttachArchiver(a Archiver) {
	m.archiver = a
}

// CreateRoom allocates a collision-checked code, builds the room with
// the host in team 1 and persists it.
func (m *Manager) CreateRoom(ctx context.Context, hostName string, numTeams int) (*Room, *Player, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := newRoomCode()
		if err != nil {
			return nil, nil, err
		}
		room, host := NewRoom(code, hostName, numTeams, time.Now())
		if err := m.reg.Create(ctx, room); err != nil {
			if errors.Is(err, ErrRoomExists) {
				continue
			}
			return nil, nil, err
		}
		m.logger.Info("room_create",
			zap.String("code", room.Code),
			zap.String("host_id", room.HostID),
			zap.Int("teams", len(room.Teams)),
		)
		m.notifier.RoomUpdated(room.Code, PublicView(room))
		return room, host, nil
	}
	return nil, nil, errors.New("failed to allocate a room code")
}

// JoinRoom adds a player, auto-balancing across teams when none is
// requested. A host-less room adopts the joiner as host.
func (m *Manager) JoinRoom(ctx context.Context, code, name, teamID string) (*Room, *Player, error) {
	var joined *Player
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		joined = r.AddPlayer(name, teamID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("room_join",
		zap.String("code", code),
		zap.String("player_id", joined.ID),
		zap.String("team_id", room.TeamOf(joined.ID).ID),
	)
	m.notifier.RoomUpdated(code, PublicView(room))
	// A mid-round all-play joiner is entitled to the card right away.
	if MaySeeCard(room, joined.ID) {
		m.notifier.CardDealt(code, []string{joined.ID}, CardPayload(room))
	}
	return room, joined, nil
}

// Rejoin re-attaches a connection to an existing player identity. No
// mutation: the caller only needs the room confirmed and the identity
// validated.
func (m *Manager) Rejoin(ctx context.Context, code, playerID string) (*Room, error) {
	room, err := m.reg.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Player(playerID) == nil {
		return nil, ErrPlayerUnknown
	}
	return room, nil
}

// Room returns the current snapshot; the poll binding's read path.
func (m *Manager) Room(ctx context.Context, code string) (*Room, error) {
	return m.reg.Get(ctx, code)
}

// StartRound runs the start transition and arms the deferred timeout
// for the exact deadline the round was given.
func (m *Manager) StartRound(ctx context.Context, code, hostID string, duration time.Duration) (*Room, error) {
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		return r.StartRound(m.deck, hostID, duration, time.Now())
	})
	if err != nil {
		return nil, err
	}

	deadline := *room.Round.EndsAt
	m.armTimeout(code, deadline)

	m.logger.Info("round_start",
		zap.String("code", code),
		zap.String("team_id", room.Round.ActiveTeamID),
		zap.String("player_id", room.Round.ActivePlayerID),
		zap.String("category", string(room.Round.Card.Category)),
		zap.Bool("all_play", room.Round.AllPlay),
		zap.Time("ends_at", deadline),
	)

	m.notifier.RoomUpdated(code, PublicView(room))
	m.notifier.CardDealt(code, CardRecipients(room), CardPayload(room))
	return room, nil
}

// MarkCorrect resolves the round as a success for the active team.
func (m *Manager) MarkCorrect(ctx context.Context, code, hostID string) (*Room, *RoundResult, error) {
	var res *RoundResult
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		var ferr error
		res, ferr = r.MarkCorrect(hostID, time.Now())
		return ferr
	})
	if err != nil {
		return nil, nil, err
	}
	m.finishRound(ctx, "round_correct", room, res)
	return room, res, nil
}

// MarkSkip resolves the round as a failure.
func (m *Manager) MarkSkip(ctx context.Context, code, hostID string) (*Room, *RoundResult, error) {
	var res *RoundResult
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		var ferr error
		res, ferr = r.MarkSkip(hostID, time.Now())
		return ferr
	})
	if err != nil {
		return nil, nil, err
	}
	m.finishRound(ctx, "round_skip", room, res)
	return room, res, nil
}

// EndRound is the host's manual abort.
func (m *Manager) EndRound(ctx context.Context, code, hostID string) (*Room, *RoundResult, error) {
	var res *RoundResult
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		var ferr error
		res, ferr = r.EndRound(hostID, time.Now())
		return ferr
	})
	if err != nil {
		return nil, nil, err
	}
	m.finishRound(ctx, "round_end", room, res)
	return room, res, nil
}

// HandleTimeout applies the deferred deadline trigger. Stale timers —
// the round already resolved, or a newer round is running — fall
// through the phase/deadline guard and change nothing.
func (m *Manager) HandleTimeout(ctx context.Context, code string, deadline time.Time) (*Room, *RoundResult, error) {
	var res *RoundResult
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		res = r.Timeout(deadline, time.Now())
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, nil, nil // room expired or emptied first
		}
		return nil, nil, err
	}
	m.finishRound(ctx, "round_timeout", room, res)
	return room, res, nil
}

// Leave removes a player (idempotent), reassigning the host and
// aborting the round if the leaver was active. The room is deleted when
// the last player leaves.
func (m *Manager) Leave(ctx context.Context, code, playerID string) (*Room, error) {
	changed := false
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		changed = r.RemovePlayer(playerID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !changed {
		return room, nil
	}

	m.logger.Info("player_leave",
		zap.String("code", code),
		zap.String("player_id", playerID),
		zap.Int("players_left", room.PlayerCount()),
	)

	if room.PlayerCount() == 0 {
		if err := m.reg.Delete(ctx, code); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
		m.logger.Info("room_delete", zap.String("code", code))
		m.notifier.RoomClosed(code)
		return nil, nil
	}

	m.notifier.RoomUpdated(code, PublicView(room))
	return room, nil
}

// ResetGame zeroes the board for a rematch after a win.
func (m *Manager) ResetGame(ctx context.Context, code, hostID string) (*Room, error) {
	room, err := m.reg.Update(ctx, code, func(r *Room) error {
		return r.Reset(hostID)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("game_reset", zap.String("code", code))
	m.notifier.RoomUpdated(code, PublicView(room))
	return room, nil
}

func (m *Manager) armTimeout(code string, deadline time.Time) {
	delay := time.Until(deadline) + timeoutSlack
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeoutOpBudget)
		defer cancel()
		if _, _, err := m.HandleTimeout(ctx, code, deadline); err != nil {
			m.logger.Error("round_timeout_error",
				zap.String("code", code),
				zap.Time("deadline", deadline),
				zap.Error(err),
			)
		}
	})
}

// finishRound fans out the consequences of a resolved round. A nil
// result means the trigger lost the termination race and was absorbed.
func (m *Manager) finishRound(ctx context.Context, event string, room *Room, res *RoundResult) {
	if res == nil {
		return
	}
	m.logger.Info(event,
		zap.String("code", room.Code),
		zap.String("team", res.TeamName),
		zap.String("reason", res.Reason),
		zap.Int("spaces", res.Spaces),
		zap.String("winner", res.Winner),
	)

	m.notifier.RoomUpdated(room.Code, PublicView(room))
	if res.Winner != "" {
		m.notifier.WinnerDeclared(room.Code, &gamedto.Winner{
			TeamName:  res.Winner,
			TeamColor: res.WinnerColor,
		})
		m.persistIfFinished(ctx, room)
		return
	}
	m.notifier.RoundEnded(room.Code, &gamedto.RoundEnded{
		Reason:       res.Reason,
		TeamName:     res.TeamName,
		PlayerName:   res.PlayerName,
		Spaces:       res.Spaces,
		CanPlayAgain: res.CanPlayAgain,
	})
}

func (m *Manager) persistIfFinished(ctx context.Context, room *Room) {
	if m.archiver == nil || room.Winner == "" {
		return
	}
	if err := m.archiver.SaveResult(ctx, room); err != nil {
		m.logger.Error("game_archive_error", zap.String("code", room.Code), zap.Error(err))
		return
	}
	m.logger.Info("game_archive", zap.String("code", room.Code), zap.String("winner", room.Winner))
}

func newRoomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("room code entropy: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

type nopNotifier struct{}

func (nopNotifier) RoomUpdated(string, *gamedto.RoomView)           {}
func (nopNotifier) CardDealt(string, []string, *gamedto.CardPayload) {}
func (nopNotifier) RoundEnded(string, *gamedto.RoundEnded)          {}
func (nopNotifier) WinnerDeclared(string, *gamedto.Winner)          {}
func (nopNotifier) RoomClosed(string)                               {}
