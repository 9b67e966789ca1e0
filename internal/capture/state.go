// Package capture ingests observed game state from a capture client and
// delivers it to the lifecycle watcher as a latest-wins stream.
package capture

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownScene = errors.New("capture: unknown scene")

// Scene is the top-level observed game context.
type Scene int

const (
	SceneMenu Scene = iota
	SceneLobby
	SceneInGame
)

func (s Scene) String() string {
	switch s {
	case SceneMenu:
		return "menu"
	case SceneLobby:
		return "lobby"
	case SceneInGame:
		return "ingame"
	default:
		return "unknown"
	}
}

// MeetingPhase is the in-game meeting sub-state.
type MeetingPhase int

const (
	MeetingNone MeetingPhase = iota
	MeetingDiscussion
	MeetingNotVoted
	MeetingVoted
	MeetingResults
)

func (m MeetingPhase) String() string {
	switch m {
	case MeetingNone:
		return "none"
	case MeetingDiscussion:
		return "discussion"
	case MeetingNotVoted:
		return "notvoted"
	case MeetingVoted:
		return "voted"
	case MeetingResults:
		return "results"
	default:
		return "unknown"
	}
}

// InMeeting reports whether the phase is any meeting sub-state.
func (m MeetingPhase) InMeeting() bool {
	return m != MeetingNone
}

// Player is one roster entry as observed by the capture client.
type Player struct {
	Name     string `json:"name"`
	Dead     bool   `json:"dead"`
	Impostor bool   `json:"impostor"`
}

// State is one decoded observation of game progress.
type State struct {
	Scene   Scene
	Meeting MeetingPhase
	Players []Player
}

// InRound reports whether the observation describes an active round.
func (s State) InRound() bool {
	return s.Scene == SceneInGame
}

// Envelope is the wire form pushed by the capture client.
type Envelope struct {
	ConnectCode string    `json:"connect_code"`
	State       StateWire `json:"state"`
}

// StateWire is the raw observation before scene/phase normalization.
type StateWire struct {
	Scene   string   `json:"scene"`
	Meeting string   `json:"meeting,omitempty"`
	Players []Player `json:"players,omitempty"`
}

// ParseState normalizes a wire observation. Disconnected capture clients
// report an offline scene, treated the same as the menu: no round.
func ParseState(w StateWire) (State, error) {
	out := State{Players: w.Players}

	switch strings.ToLower(strings.TrimSpace(w.Scene)) {
	case "menu", "offline", "disconnected":
		out.Scene = SceneMenu
	case "lobby":
		out.Scene = SceneLobby
	case "ingame", "game", "tasks":
		out.Scene = SceneInGame
	default:
		return State{}, fmt.Errorf("%w: %q", ErrUnknownScene, w.Scene)
	}

	switch strings.ToLower(strings.TrimSpace(w.Meeting)) {
	case "", "none":
		out.Meeting = MeetingNone
	case "discussion":
		out.Meeting = MeetingDiscussion
	case "notvoted", "not_voted":
		out.Meeting = MeetingNotVoted
	case "voted":
		out.Meeting = MeetingVoted
	case "results":
		out.Meeting = MeetingResults
	default:
		out.Meeting = MeetingNone
	}

	if out.Scene != SceneInGame {
		out.Meeting = MeetingNone
	}
	return out, nil
}
