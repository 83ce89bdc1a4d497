package game

import (
	"github.com/vcporto/sketchdash/internal/board"
	"github.com/vcporto/sketchdash/pkg/gamedto"
)

// PublicView is the broadcast gate's redacted projection: everything a
// participant may see regardless of role. The active card appears only
// as its category and reward; the prompt text never leaves CardPayload.
func PublicView(r *Room) *gamedto.RoomView {
	v := &gamedto.RoomView{
		Code:      r.Code,
		HostID:    r.HostID,
		BoardSize: r.BoardSize,

		Phase:          string(r.Phase),
		InRound:        r.Phase == PhaseInRound,
		ActiveTeamID:   r.Round.ActiveTeamID,
		ActivePlayerID: r.Round.ActivePlayerID,

		Winner:       r.Winner,
		GameStarted:  r.GameStarted(),
		CanPlayAgain: r.Phase == PhaseAwaitingReplay,
	}

	if r.Phase == PhaseInRound {
		v.ActiveCategory = string(r.Round.Card.Category)
		v.ActiveSpaces = r.Round.Card.Spaces
		v.Mode = string(r.Round.Mode)
		v.RoundEndsAt = r.Round.EndsAt.UnixMilli()
		v.AllPlay = r.Round.AllPlay
	}

	v.Teams = make([]gamedto.TeamView, 0, len(r.Teams))
	for _, t := range r.Teams {
		tv := gamedto.TeamView{
			ID:       t.ID,
			Name:     t.Name,
			Color:    t.Color,
			Position: t.Position,
			Players:  make([]gamedto.PlayerView, 0, len(t.Players)),
		}
		for _, p := range t.Players {
			tv.Players = append(tv.Players, gamedto.PlayerView{ID: p.ID, Name: p.Name})
		}
		v.Teams = append(v.Teams, tv)
	}

	v.History = make([]gamedto.HistoryEntry, 0, len(r.History))
	for _, h := range r.History {
		v.History = append(v.History, gamedto.HistoryEntry{
			TeamName:   h.TeamName,
			PlayerName: h.PlayerName,
			Card:       h.Card,
			Success:    h.Success,
			Spaces:     h.Spaces,
			Timestamp:  h.Timestamp,
		})
	}
	return v
}

// CardPayload builds the private card payload, or nil outside a round.
func CardPayload(r *Room) *gamedto.CardPayload {
	if r.Phase != PhaseInRound || r.Round.Card == nil {
		return nil
	}
	pos := 0
	if t := r.team(r.Round.ActiveTeamID); t != nil {
		pos = t.Position
	}
	return &gamedto.CardPayload{
		Category:     string(r.Round.Card.Category),
		CategoryName: board.Name(r.Round.Card.Category),
		Text:         r.Round.Card.Text,
		Spaces:       r.Round.Card.Spaces,
		Mode:         string(r.Round.Mode),
		RoundEndsAt:  r.Round.EndsAt.UnixMilli(),
		TeamPosition: pos,
		AllPlay:      r.Round.AllPlay,
	}
}

// CardRecipients lists the player ids entitled to the full card: only
// the active player, unless the all-play rule discloses it to everyone.
func CardRecipients(r *Room) []string {
	if r.Phase != PhaseInRound {
		return nil
	}
	if !r.Round.AllPlay {
		return []string{r.Round.ActivePlayerID}
	}
	var ids []string
	for _, t := range r.Teams {
		for _, p := range t.Players {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// MaySeeCard reports whether one player is entitled to the full card
// right now. Used by the poll binding's card endpoint.
func MaySeeCard(r *Room, playerID string) bool {
	if r.Phase != PhaseInRound {
		return false
	}
	if r.Round.AllPlay {
		return r.Player(playerID) != nil
	}
	return playerID == r.Round.ActivePlayerID
}
