package game

import (
	"time"

	"github.com/vcporto/sketchdash/internal/board"
	"github.com/vcporto/sketchdash/internal/deck"
)

// RoundResult describes how a round left the in_round phase. A nil
// result from MarkCorrect/MarkSkip/EndRound/Timeout (with nil error)
// means the call was absorbed as a no-op because the round had already
// ended — the race contract of concurrent terminations.
type RoundResult struct {
	Reason       string // correct | skip | timeout | aborted
	TeamName     string
	PlayerName   string
	Spaces       int
	CanPlayAgain bool
	Winner       string
	WinnerColor  string
}

// StartRound begins a round for the host. From awaiting_replay the same
// team and player continue; from idle rotation picks the next pair. The
// card is drawn from the category of the active team's square, the
// wildcard square draws unfiltered, and the all-play square flags the
// card for everyone.
func (r *Room) StartRound(d *deck.Deck, hostID string, duration time.Duration, now time.Time) error {
	if hostID != r.HostID {
		return ErrForbidden
	}
	switch r.Phase {
	case PhaseFinished:
		return ErrGameFinished
	case PhaseInRound:
		return ErrRoundInProgress
	}
	if r.PlayerCount() < 2 {
		return ErrNotEnoughPlayers
	}

	// Replay consumes the bonus turn: same team, same player. If the
	// scoring player has since left, fall back to rotation.
	replay := r.Phase == PhaseAwaitingReplay && r.Player(r.Round.ActivePlayerID) != nil
	if !replay {
		teamID, playerID, err := r.nextTurn()
		if err != nil {
			return err
		}
		r.Round.ActiveTeamID = teamID
		r.Round.ActivePlayerID = playerID
	}

	active := r.team(r.Round.ActiveTeamID)
	category := board.CategoryAt(active.Position)

	filter := category
	if category == board.CategoryWildcard {
		filter = "" // mix square draws from the whole corpus
	}
	card, err := d.Draw(filter)
	if err != nil {
		return err
	}

	endsAt := now.Add(ClampDuration(duration)).Truncate(time.Millisecond)
	r.Round.Card = &card
	r.Round.Mode = d.DrawMode()
	r.Round.EndsAt = &endsAt
	r.Round.AllPlay = category == board.CategoryAllPlay
	r.Phase = PhaseInRound
	return nil
}

// MarkCorrect resolves the round as a success: the active team advances
// by the card's spaces, and either wins or earns an immediate replay.
func (r *Room) MarkCorrect(hostID string, now time.Time) (*RoundResult, error) {
	if hostID != r.HostID {
		return nil, ErrForbidden
	}
	if r.Phase != PhaseInRound {
		return nil, nil // already resolved by a concurrent trigger
	}

	active := r.team(r.Round.ActiveTeamID)
	player := r.Player(r.Round.ActivePlayerID)
	spaces := r.Round.Card.Spaces
	if spaces <= 0 {
		spaces = 1
	}
	active.Position += spaces

	r.pushHistory(HistoryEntry{
		TeamName:   active.Name,
		PlayerName: playerName(player),
		Card:       cardLabel(r.Round.Card),
		Success:    true,
		Spaces:     spaces,
		Timestamp:  now,
	})

	res := &RoundResult{
		Reason:     "correct",
		TeamName:   active.Name,
		PlayerName: playerName(player),
		Spaces:     spaces,
	}

	r.clearRound()
	if active.Position >= r.BoardSize {
		r.Winner = active.Name
		r.Phase = PhaseFinished
		res.Winner = active.Name
		res.WinnerColor = active.Color
	} else {
		r.Phase = PhaseAwaitingReplay
		res.CanPlayAgain = true
	}
	return res, nil
}

// MarkSkip resolves the round as a failure; rotation advances on the
// next start.
func (r *Room) MarkSkip(hostID string, now time.Time) (*RoundResult, error) {
	if hostID != r.HostID {
		return nil, ErrForbidden
	}
	return r.failRound("skip", now), nil
}

// EndRound is the host's manual abort; it resolves exactly like a skip
// without waiting for the deadline.
func (r *Room) EndRound(hostID string, now time.Time) (*RoundResult, error) {
	if hostID != r.HostID {
		return nil, ErrForbidden
	}
	return r.failRound("aborted", now), nil
}

// Timeout is the deferred deadline trigger. It carries the exact
// deadline it was armed for: if the room has since left in_round, or is
// in a newer round with a different deadline, the stale timer is a
// no-op. Host identity is not checked — the system fires this.
func (r *Room) Timeout(deadline time.Time, now time.Time) *RoundResult {
	if r.Phase != PhaseInRound {
		return nil
	}
	if r.Round.EndsAt == nil || r.Round.EndsAt.UnixMilli() != deadline.UnixMilli() {
		return nil // stale timer from an earlier round
	}
	return r.failRound("timeout", now)
}

// Reset starts a fresh game after a win: zeroed positions, cleared
// history and winner, back to idle with rotation restarted.
func (r *Room) Reset(hostID string) error {
	if hostID != r.HostID {
		return ErrForbidden
	}
	for _, t := range r.Teams {
		t.Position = 0
	}
	r.History = nil
	r.Winner = ""
	r.Round = Round{}
	r.Phase = PhaseIdle
	return nil
}

func (r *Room) failRound(reason string, now time.Time) *RoundResult {
	if r.Phase != PhaseInRound {
		return nil
	}

	active := r.team(r.Round.ActiveTeamID)
	player := r.Player(r.Round.ActivePlayerID)

	r.pushHistory(HistoryEntry{
		TeamName:   teamName(active),
		PlayerName: playerName(player),
		Card:       cardLabel(r.Round.Card),
		Success:    false,
		Spaces:     0,
		Timestamp:  now,
	})

	r.clearRound()
	r.Phase = PhaseIdle
	return &RoundResult{
		Reason:     reason,
		TeamName:   teamName(active),
		PlayerName: playerName(player),
	}
}

// clearRound drops the per-round secrets while keeping the active pair
// for rotation.
func (r *Room) clearRound() {
	r.Round.Card = nil
	r.Round.Mode = ""
	r.Round.EndsAt = nil
	r.Round.AllPlay = false
}

func playerName(p *Player) string {
	if p == nil {
		return "?"
	}
	return p.Name
}

func teamName(t *Team) string {
	if t == nil {
		return "?"
	}
	return t.Name
}
