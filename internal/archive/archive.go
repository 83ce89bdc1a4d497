// Package archive persists finished games to Postgres. It is optional:
// deployments without DATABASE_URL run without it.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/vcporto/sketchdash/internal/game"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts one finished game keyed by (room code, finish
// time). A rematch in the same room archives as a separate row.
func (r *Repository) SaveResult(ctx context.Context, room *game.Room) error {
	if r == nil || r.db == nil || room == nil {
		return nil
	}
	if room.Winner == "" {
		return nil
	}

	standings := make([]teamStanding, 0, len(room.Teams))
	for _, t := range room.Teams {
		standings = append(standings, teamStanding{
			Name:     t.Name,
			Color:    t.Color,
			Position: t.Position,
			Players:  len(t.Players),
		})
	}
	standingsRaw, _ := json.Marshal(standings)
	historyRaw, _ := json.Marshal(room.History)

	duration := room.LastUpdate.Sub(room.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO finished_games (
	    room_code, winner, board_size, standings, history,
	    started_at, ended_at, duration_ms
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	  ON CONFLICT (room_code, ended_at) DO UPDATE SET
	    winner=EXCLUDED.winner,
	    board_size=EXCLUDED.board_size,
	    standings=EXCLUDED.standings,
	    history=EXCLUDED.history,
	    started_at=EXCLUDED.started_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		room.Code, room.Winner, room.BoardSize,
		string(standingsRaw), string(historyRaw),
		room.CreatedAt, room.LastUpdate, duration,
	)
	return err
}

type teamStanding struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
	Players  int    `json:"players"`
}
