package discord

import "github.com/crewcall/crewcall/internal/game"

// Control-message emoji. The core checks capabilities, not emoji literals.
const (
	EmojiMeeting = "\U0001F6A8" // police light
	EmojiDead    = "\U0001F480" // skull
)

// Capability names what a reaction on the control message is allowed to do.
type Capability int

const (
	CapabilityNone Capability = iota
	// CapabilityToggleMeeting starts a meeting on reaction add and ends it
	// on reaction remove. Restricted to the round's control user and owners.
	CapabilityToggleMeeting
	// CapabilityMarkSelfDead marks the reacting user dead. Self-service, no
	// authorization required.
	CapabilityMarkSelfDead
)

// CapabilityFor maps an emoji to its control capability.
func CapabilityFor(emoji string) Capability {
	switch emoji {
	case EmojiMeeting:
		return CapabilityToggleMeeting
	case EmojiDead:
		return CapabilityMarkSelfDead
	default:
		return CapabilityNone
	}
}

// Reaction is one emoji add/remove on some message.
type Reaction struct {
	Channel game.ChannelID
	Message game.MessageID
	User    game.UserID
	Emoji   string
}

// InboundMessage is one chat message as seen by the command handler.
type InboundMessage struct {
	ID        game.MessageID
	Channel   game.ChannelID
	Guild     game.GuildID
	Author    game.UserID
	AuthorBot bool
	Content   string
}
