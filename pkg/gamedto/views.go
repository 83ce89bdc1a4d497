// Package gamedto holds the wire-level payloads shared by both transport
// bindings. Everything here is derived from room state by the broadcast
// gate; nothing is stored.
package gamedto

import "time"

// RoomView is the redacted room state every participant may see. The
// active card is reduced to its category and reward; the prompt text is
// never present here.
type RoomView struct {
	Code      string     `json:"code"`
	HostID    string     `json:"host_id"`
	Teams     []TeamView `json:"teams"`
	BoardSize int        `json:"board_size"`

	Phase          string `json:"phase"`
	InRound        bool   `json:"in_round"`
	ActiveTeamID   string `json:"active_team_id,omitempty"`
	ActivePlayerID string `json:"active_player_id,omitempty"`
	ActiveCategory string `json:"active_category,omitempty"`
	ActiveSpaces   int    `json:"active_spaces,omitempty"`
	Mode           string `json:"mode,omitempty"`
	RoundEndsAt    int64  `json:"round_ends_at,omitempty"` // unix millis
	AllPlay        bool   `json:"all_play,omitempty"`

	History      []HistoryEntry `json:"history"`
	Winner       string         `json:"winner,omitempty"`
	GameStarted  bool           `json:"game_started"`
	CanPlayAgain bool           `json:"can_play_again"`
}

type TeamView struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Color    string       `json:"color"`
	Position int          `json:"position"`
	Players  []PlayerView `json:"players"`
}

type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type HistoryEntry struct {
	TeamName   string    `json:"team_name"`
	PlayerName string    `json:"player_name"`
	Card       string    `json:"card"`
	Success    bool      `json:"success"`
	Spaces     int       `json:"spaces"`
	Timestamp  time.Time `json:"timestamp"`
}

// CardPayload is the full active card. It goes only to the active
// player's connection, or to every participant when AllPlay is set.
type CardPayload struct {
	Category     string `json:"category"`
	CategoryName string `json:"category_name"`
	Text         string `json:"text"`
	Spaces       int    `json:"spaces"`
	Mode         string `json:"mode"`
	RoundEndsAt  int64  `json:"round_ends_at"` // unix millis
	TeamPosition int    `json:"team_position"`
	AllPlay      bool   `json:"all_play"`
}

// RoundEnded announces how a round left the in-round phase.
type RoundEnded struct {
	Reason       string `json:"reason"` // correct | skip | timeout | aborted
	TeamName     string `json:"team_name,omitempty"`
	PlayerName   string `json:"player_name,omitempty"`
	Spaces       int    `json:"spaces,omitempty"`
	CanPlayAgain bool   `json:"can_play_again"`
}

// Winner announces the end of the game.
type Winner struct {
	TeamName  string `json:"team_name"`
	TeamColor string `json:"team_color"`
}
