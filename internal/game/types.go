// Package game implements the session coordinator: room and roster
// state, the round state machine, turn rotation and the broadcast gate.
// All mutations of one room are serialized through a Registry, so the
// methods on Room assume exclusive access.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vcporto/sketchdash/internal/board"
	"github.com/vcporto/sketchdash/internal/deck"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room code already taken")
	ErrForbidden        = errors.New("only the host may do that")
	ErrGameFinished     = errors.New("the game is already over")
	ErrNotEnoughPlayers = errors.New("at least 2 players are required")
	ErrRoundInProgress  = errors.New("a round is already running")
	ErrEmptyTeam        = errors.New("no team with players to rotate to")
	ErrPlayerUnknown    = errors.New("player not in this room")
)

// Phase is the single tagged round lifecycle state. Convenience booleans
// exposed to clients (in_round, game_started, can_play_again) are derived
// from it at view time and never stored.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseInRound        Phase = "in_round"
	PhaseAwaitingReplay Phase = "awaiting_replay"
	PhaseFinished       Phase = "finished"
)

// teamPalette assigns one distinct color per team, in creation order.
var teamPalette = []string{
	"#3b82f6", "#ef4444", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899",
}

const (
	MinTeams = 2
	MaxTeams = 6

	historyCap    = 5
	nameRuneLimit = 24

	MinRoundDuration     = 15 * time.Second
	MaxRoundDuration     = 180 * time.Second
	DefaultRoundDuration = 60 * time.Second
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Team struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Position int       `json:"position"`
	Players  []*Player `json:"players"`
}

// HistoryEntry records one resolved round. Entries are immutable once
// appended.
type HistoryEntry struct {
	TeamName   string    `json:"team_name"`
	PlayerName string    `json:"player_name"`
	Card       string    `json:"card"`
	Success    bool      `json:"success"`
	Spaces     int       `json:"spaces"`
	Timestamp  time.Time `json:"timestamp"`
}

// Round carries the per-round fields. ActiveTeamID/ActivePlayerID
// survive past round end — rotation needs them — while Card, Mode,
// EndsAt and AllPlay are non-zero iff Phase is in_round.
type Round struct {
	ActiveTeamID   string     `json:"active_team_id,omitempty"`
	ActivePlayerID string     `json:"active_player_id,omitempty"`
	Card           *deck.Card `json:"card,omitempty"`
	Mode           deck.Mode  `json:"mode,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	AllPlay        bool       `json:"all_play,omitempty"`
}

// Room is one game session. It is the unit of persistence: the registry
// stores its JSON snapshot under the room code.
type Room struct {
	Code      string  `json:"code"`
	HostID    string  `json:"host_id"`
	Teams     []*Team `json:"teams"`
	BoardSize int     `json:"board_size"`

	Phase Phase `json:"phase"`
	Round Round `json:"round"`

	History []HistoryEntry `json:"history"`
	Winner  string         `json:"winner,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastUpdate time.Time `json:"last_update"`
}

// NewRoom builds a room with numTeams empty teams (clamped to [2,6]) and
// the host joined to the first one.
func NewRoom(code, hostName string, numTeams int, now time.Time) (*Room, *Player) {
	if numTeams < MinTeams {
		numTeams = MinTeams
	}
	if numTeams > MaxTeams {
		numTeams = MaxTeams
	}

	teams := make([]*Team, 0, numTeams)
	for i := 0; i < numTeams; i++ {
		teams = append(teams, &Team{
			ID:    fmt.Sprintf("team-%d", i+1),
			Name:  fmt.Sprintf("Equipe %d", i+1),
			Color: teamPalette[i],
		})
	}

	host := &Player{ID: newPlayerID(), Name: CleanName(hostName, "Host")}
	teams[0].Players = append(teams[0].Players, host)

	return &Room{
		Code:       code,
		HostID:     host.ID,
		Teams:      teams,
		BoardSize:  board.Size,
		Phase:      PhaseIdle,
		CreatedAt:  now,
		LastUpdate: now,
	}, host
}

// CleanName trims, collapses whitespace and caps a user-supplied name,
// falling back when nothing is left.
func CleanName(raw, fallback string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return fallback
	}
	runes := []rune(cleaned)
	if len(runes) > nameRuneLimit {
		cleaned = strings.TrimSpace(string(runes[:nameRuneLimit]))
		if cleaned == "" {
			return fallback
		}
	}
	return cleaned
}

// ClampDuration bounds a requested round duration, substituting the
// default when none was given.
func ClampDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRoundDuration
	}
	if d < MinRoundDuration {
		return MinRoundDuration
	}
	if d > MaxRoundDuration {
		return MaxRoundDuration
	}
	return d
}

func (r *Room) team(id string) *Team {
	for _, t := range r.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// PlayerCount is the total number of players across all teams.
func (r *Room) PlayerCount() int {
	n := 0
	for _, t := range r.Teams {
		n += len(t.Players)
	}
	return n
}

// GameStarted reports whether any round has ever run in this room.
func (r *Room) GameStarted() bool {
	return r.Phase != PhaseIdle || len(r.History) > 0 || r.Round.ActiveTeamID != ""
}

func (r *Room) pushHistory(e HistoryEntry) {
	r.History = append([]HistoryEntry{e}, r.History...)
	if len(r.History) > historyCap {
		r.History = r.History[:historyCap]
	}
}

func cardLabel(c *deck.Card) string {
	if c == nil {
		return ""
	}
	return board.Name(c.Category) + ": " + c.Text
}
