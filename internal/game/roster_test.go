package game

import (
	"testing"
	"time"
)

func newTestRoom(t *testing.T) (*Room, *Player) {
	t.Helper()
	room, host := NewRoom("TESTA", "Ana", 2, time.Now())
	return room, host
}

func TestNewRoomClampsTeams(t *testing.T) {
	room, host := NewRoom("TESTB", "  ", 1, time.Now())
	if len(room.Teams) != MinTeams {
		t.Fatalf("teams = %d, want %d", len(room.Teams), MinTeams)
	}
	if host.Name != "Host" {
		t.Fatalf("blank host name: got %q, want fallback Host", host.Name)
	}
	if room.HostID != host.ID {
		t.Fatalf("host not registered")
	}
	if room.Teams[0].Players[0] != host {
		t.Fatalf("host not seated in the first team")
	}

	room, _ = NewRoom("TESTC", "Ana", 99, time.Now())
	if len(room.Teams) != MaxTeams {
		t.Fatalf("teams = %d, want %d", len(room.Teams), MaxTeams)
	}
	seen := map[string]bool{}
	for _, tm := range room.Teams {
		if seen[tm.Color] {
			t.Fatalf("duplicate team color %s", tm.Color)
		}
		seen[tm.Color] = true
	}
}

func TestAddPlayerBalancesTeams(t *testing.T) {
	room, _ := newTestRoom(t)

	p2 := room.AddPlayer("Bia", "")
	if got := room.TeamOf(p2.ID); got == nil || got.ID != "team-2" {
		t.Fatalf("second player should land in the empty team")
	}

	// Both teams at 1: ties resolve by team order.
	p3 := room.AddPlayer("Caio", "")
	if got := room.TeamOf(p3.ID); got == nil || got.ID != "team-1" {
		t.Fatalf("tie should go to the first team, got %v", got)
	}

	p4 := room.AddPlayer("Duda", "team-1")
	if got := room.TeamOf(p4.ID); got == nil || got.ID != "team-1" {
		t.Fatalf("explicit team request ignored")
	}

	// Unknown team id falls back to balancing.
	p5 := room.AddPlayer("Edu", "team-9")
	if got := room.TeamOf(p5.ID); got == nil || got.ID != "team-2" {
		t.Fatalf("unknown team request should balance, got %v", got)
	}
}

func TestAddPlayerAdoptsHostWhenNone(t *testing.T) {
	room, host := newTestRoom(t)
	room.RemovePlayer(host.ID)
	if room.PlayerCount() != 0 {
		t.Fatalf("setup: expected empty room")
	}

	p := room.AddPlayer("Bia", "")
	if room.HostID != p.ID {
		t.Fatalf("joiner of a hostless room should become host")
	}
}

func TestRemovePlayerPromotesHost(t *testing.T) {
	room, host := newTestRoom(t)
	p2 := room.AddPlayer("Bia", "")

	if !room.RemovePlayer(host.ID) {
		t.Fatalf("RemovePlayer host: want true")
	}
	if room.HostID != p2.ID {
		t.Fatalf("host = %q, want promotion to %q", room.HostID, p2.ID)
	}
	if room.RemovePlayer(host.ID) {
		t.Fatalf("removing an absent player should be a no-op")
	}
}

func TestRemoveActivePlayerAbortsRound(t *testing.T) {
	room, host := newTestRoom(t)
	room.AddPlayer("Bia", "")

	d := loadTestDeck(t)
	if err := room.StartRound(d, host.ID, 0, time.Now()); err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	active := room.Round.ActivePlayerID

	if !room.RemovePlayer(active) {
		t.Fatalf("RemovePlayer active: want true")
	}
	if room.Phase != PhaseIdle {
		t.Fatalf("phase = %q, want idle after active player left", room.Phase)
	}
	if room.Round.Card != nil || room.Round.EndsAt != nil {
		t.Fatalf("round secrets should be cleared")
	}
	if len(room.History) != 0 {
		t.Fatalf("disconnect abort must not write history, got %d entries", len(room.History))
	}
}

func TestCleanName(t *testing.T) {
	cases := []struct{ in, fallback, want string }{
		{"  Ana   Clara ", "Jogador", "Ana Clara"},
		{"", "Jogador", "Jogador"},
		{"   ", "Host", "Host"},
		{"aaaaaaaaaabbbbbbbbbbccccccccccdd", "Jogador", "aaaaaaaaaabbbbbbbbbbcccc"},
	}
	for _, c := range cases {
		if got := CleanName(c.in, c.fallback); got != c.want {
			t.Errorf("CleanName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
