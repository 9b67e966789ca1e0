// Package discord adapts the chat platform to the game core: it parses raw
// text and reactions into typed commands and capabilities at the boundary,
// so the core never sees platform literals.
package discord

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crewcall/crewcall/internal/game"
)

var (
	ErrNotCommand     = errors.New("discord: not a command")
	ErrUnknownCommand = errors.New("discord: unknown command")
)

// UsageError is a recoverable argument problem, answered with a corrective
// message and no state mutation.
type UsageError struct {
	Hint string
}

func (e UsageError) Error() string {
	return "discord: usage: " + e.Hint
}

// Command is a typed control-surface command.
type Command interface {
	commandName() string
}

// StartRoundCommand begins a round. MuteDelay is the wait before the initial
// mute; NoInitialMute skips it entirely.
type StartRoundCommand struct {
	MuteDelay     time.Duration
	HasMuteDelay  bool
	NoInitialMute bool
}

// EndRoundCommand tears down the active round.
type EndRoundCommand struct{}

// MarkDeadCommand marks the mentioned user dead.
type MarkDeadCommand struct {
	Target game.UserID
}

// LinkCommand assigns the caller an in-game name alias for identity matching.
type LinkCommand struct {
	Alias string
}

// UnlinkCommand removes the caller's alias override.
type UnlinkCommand struct{}

// ShutdownCommand ends any active round and stops the bot.
type ShutdownCommand struct{}

func (StartRoundCommand) commandName() string { return "new" }
func (EndRoundCommand) commandName() string   { return "end" }
func (MarkDeadCommand) commandName() string   { return "dead" }
func (LinkCommand) commandName() string       { return "link" }
func (UnlinkCommand) commandName() string     { return "unlink" }
func (ShutdownCommand) commandName() string   { return "stop" }

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// ParseCommand turns raw message content into a typed command. Content not
// starting with the prefix yields ErrNotCommand; a prefixed but unknown verb
// yields ErrUnknownCommand.
func ParseCommand(prefix, content string) (Command, error) {
	if !strings.HasPrefix(content, prefix) {
		return nil, ErrNotCommand
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return nil, ErrNotCommand
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "new":
		cmd := StartRoundCommand{}
		if len(args) > 0 {
			secs, err := strconv.Atoi(args[0])
			if err != nil || secs < 0 {
				return nil, UsageError{Hint: fmt.Sprintf("%snew [delay seconds]", prefix)}
			}
			cmd.HasMuteDelay = true
			if secs == 0 {
				cmd.NoInitialMute = true
			}
			cmd.MuteDelay = time.Duration(secs) * time.Second
		}
		return cmd, nil
	case "end":
		return EndRoundCommand{}, nil
	case "dead":
		if len(args) == 0 {
			return nil, UsageError{Hint: "You must mention the user you wish to die"}
		}
		target, ok := parseMention(args[0])
		if !ok {
			return nil, UsageError{Hint: "You must mention the user you wish to die"}
		}
		return MarkDeadCommand{Target: target}, nil
	case "link":
		if len(args) == 0 {
			return nil, UsageError{Hint: fmt.Sprintf("%slink <in-game name>", prefix)}
		}
		return LinkCommand{Alias: strings.Join(args, " ")}, nil
	case "unlink":
		return UnlinkCommand{}, nil
	case "stop":
		return ShutdownCommand{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

func parseMention(raw string) (game.UserID, bool) {
	m := mentionPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return game.UserID(m[1]), true
}
