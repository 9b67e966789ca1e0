package capture

import (
	"errors"
	"testing"

	"github.com/crewcall/crewcall/internal/testutil/testlog"
)

func TestParseStateNormalizesScenes(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		raw  string
		want Scene
	}{
		{"menu", SceneMenu},
		{"offline", SceneMenu},
		{"disconnected", SceneMenu},
		{"lobby", SceneLobby},
		{"LOBBY", SceneLobby},
		{"ingame", SceneInGame},
		{"tasks", SceneInGame},
	}
	for _, tc := range cases {
		s, err := ParseState(StateWire{Scene: tc.raw})
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if s.Scene != tc.want {
			t.Fatalf("%q: got %v want %v", tc.raw, s.Scene, tc.want)
		}
	}
}

func TestParseStateRejectsUnknownScene(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseState(StateWire{Scene: "hide-and-seek"}); !errors.Is(err, ErrUnknownScene) {
		t.Fatalf("expected ErrUnknownScene, got %v", err)
	}
}

func TestParseStateMeetingPhases(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		raw  string
		want MeetingPhase
	}{
		{"", MeetingNone},
		{"none", MeetingNone},
		{"discussion", MeetingDiscussion},
		{"notvoted", MeetingNotVoted},
		{"not_voted", MeetingNotVoted},
		{"voted", MeetingVoted},
		{"results", MeetingResults},
		{"something-new", MeetingNone},
	}
	for _, tc := range cases {
		s, err := ParseState(StateWire{Scene: "ingame", Meeting: tc.raw})
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if s.Meeting != tc.want {
			t.Fatalf("%q: got %v want %v", tc.raw, s.Meeting, tc.want)
		}
	}
}

func TestParseStateClearsMeetingOutsideRound(t *testing.T) {
	testlog.Start(t)
	s, err := ParseState(StateWire{Scene: "lobby", Meeting: "discussion"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Meeting != MeetingNone {
		t.Fatalf("meeting should be cleared outside a round: %v", s.Meeting)
	}
	if s.InRound() {
		t.Fatalf("lobby is not a round")
	}
}

func TestParseStateCarriesRoster(t *testing.T) {
	testlog.Start(t)
	players := []Player{{Name: "Red", Dead: true}, {Name: "Blue", Impostor: true}}
	s, err := ParseState(StateWire{Scene: "ingame", Players: players})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Players) != 2 || s.Players[0].Name != "Red" || !s.Players[1].Impostor {
		t.Fatalf("roster not carried: %+v", s.Players)
	}
}
