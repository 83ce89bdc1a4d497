package game

import "github.com/google/uuid"

func newPlayerID() string { return uuid.NewString() }

// AddPlayer joins a player to the given team, or to the team with the
// fewest players (ties broken by team order) when teamID is empty or
// unknown. A room left without a host adopts the next joiner as host.
func (r *Room) AddPlayer(name, teamID string) *Player {
	target := r.team(teamID)
	if target == nil {
		for _, t := range r.Teams {
			if target == nil || len(t.Players) < len(target.Players) {
				target = t
			}
		}
	}

	p := &Player{ID: newPlayerID(), Name: CleanName(name, "Jogador")}
	target.Players = append(target.Players, p)

	if r.HostID == "" {
		r.HostID = p.ID
	}
	return p
}

// RemovePlayer detaches a player from the roster. Removing an id that is
// not present is a no-op. Side effects when the player was present:
// host reassignment, and an abort of the running round if the player was
// the active one. Returns whether anything changed.
func (r *Room) RemovePlayer(playerID string) bool {
	changed := false
	for _, t := range r.Teams {
		kept := t.Players[:0]
		for _, p := range t.Players {
			if p.ID == playerID {
				changed = true
				continue
			}
			kept = append(kept, p)
		}
		t.Players = kept
	}
	if !changed {
		return false
	}

	if r.HostID == playerID {
		r.HostID = r.firstPlayerID()
	}

	// The active player leaving mid-round aborts the round. No history
	// entry: the round never resolved.
	if r.Phase == PhaseInRound && r.Round.ActivePlayerID == playerID {
		r.Round.ActivePlayerID = ""
		r.clearRound()
		r.Phase = PhaseIdle
	}
	return true
}

// TeamOf returns the team containing the player, or nil.
func (r *Room) TeamOf(playerID string) *Team {
	for _, t := range r.Teams {
		for _, p := range t.Players {
			if p.ID == playerID {
				return t
			}
		}
	}
	return nil
}

// Player returns the player by id, or nil.
func (r *Room) Player(playerID string) *Player {
	for _, t := range r.Teams {
		for _, p := range t.Players {
			if p.ID == playerID {
				return p
			}
		}
	}
	return nil
}

// firstPlayerID finds the promotion candidate: first team in order that
// has players, first player by join order. Empty when the room is empty.
func (r *Room) firstPlayerID() string {
	for _, t := range r.Teams {
		if len(t.Players) > 0 {
			return t.Players[0].ID
		}
	}
	return ""
}
