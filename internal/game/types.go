// Package game holds the round state store, identity matching, the lifecycle
// state machine, and the voice-state reconciliation batcher.
package game

// Snowflake identifiers from the chat platform. Kept as distinct types so
// channel, user, guild and role ids cannot be mixed up at call sites.
type (
	UserID    string
	ChannelID string
	GuildID   string
	RoleID    string
	MessageID string
)

// Player is one in-game participant as reported by the capture feed.
// Keyed by in-game name, not by chat-platform identity.
type Player struct {
	Name     string
	Dead     bool
	Impostor bool
}

// Occupant is one voice-channel member eligible for orchestration.
// Bot accounts and spectator-role holders are filtered out before this point.
type Occupant struct {
	UserID      UserID
	GuildID     GuildID
	Roles       []RoleID
	DisplayName string
	UserName    string
}

// Phase is the process-wide lifecycle phase. Exactly one is active at a time.
type Phase int

const (
	PhasePreGame Phase = iota
	PhaseInGame
	PhaseInMeeting
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhasePreGame:
		return "pregame"
	case PhaseInGame:
		return "ingame"
	case PhaseInMeeting:
		return "inmeeting"
	case PhaseGameOver:
		return "gameover"
	default:
		return "unknown"
	}
}

// Record is the authoritative state of the active round. It exists iff a
// round is active.
type Record struct {
	Dead              map[UserID]struct{}
	ControlChannel    ChannelID
	ControlMessage    MessageID
	ControlUser       UserID
	Guild             GuildID
	MeetingInProgress bool
}

// IsDead reports whether the given user has been marked dead this round.
func (r Record) IsDead(id UserID) bool {
	_, ok := r.Dead[id]
	return ok
}

func cloneDead(in map[UserID]struct{}) map[UserID]struct{} {
	out := make(map[UserID]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
