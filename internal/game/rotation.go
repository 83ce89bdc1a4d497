package game

// nextTurn computes the (team, player) pair for the next round started
// from idle. Rules, in order: first-ever round goes to the first team's
// first player; otherwise the active team's next player if the active
// player is present and not last; otherwise the next team in round-robin
// order, skipping teams emptied by disconnections. ErrEmptyTeam when no
// team has players.
func (r *Room) nextTurn() (teamID, playerID string, err error) {
	if r.Round.ActiveTeamID == "" {
		t := r.firstNonEmptyTeam(0)
		if t == nil {
			return "", "", ErrEmptyTeam
		}
		return t.ID, t.Players[0].ID, nil
	}

	curIdx := -1
	for i, t := range r.Teams {
		if t.ID == r.Round.ActiveTeamID {
			curIdx = i
			break
		}
	}
	if curIdx >= 0 {
		cur := r.Teams[curIdx]
		for i, p := range cur.Players {
			if p.ID == r.Round.ActivePlayerID && i < len(cur.Players)-1 {
				return cur.ID, cur.Players[i+1].ID, nil
			}
		}
	}

	// Last player of the team, active player gone, or team gone: advance
	// to the next non-empty team.
	t := r.firstNonEmptyTeam(curIdx + 1)
	if t == nil {
		return "", "", ErrEmptyTeam
	}
	return t.ID, t.Players[0].ID, nil
}

// firstNonEmptyTeam scans one full lap starting at index from (wrapping)
// and returns the first team with players.
func (r *Room) firstNonEmptyTeam(from int) *Team {
	n := len(r.Teams)
	for i := 0; i < n; i++ {
		t := r.Teams[(from+i)%n]
		if len(t.Players) > 0 {
			return t
		}
	}
	return nil
}
