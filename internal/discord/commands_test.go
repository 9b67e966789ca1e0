package discord

import (
	"errors"
	"testing"
	"time"

	"github.com/crewcall/crewcall/internal/testutil/testlog"
)

func TestParseCommandVocabulary(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		content string
		want    Command
	}{
		{"~new", StartRoundCommand{}},
		{"~NEW", StartRoundCommand{}},
		{"~end", EndRoundCommand{}},
		{"~dead <@123>", MarkDeadCommand{Target: "123"}},
		{"~dead <@!123>", MarkDeadCommand{Target: "123"}},
		{"~unlink", UnlinkCommand{}},
		{"~stop", ShutdownCommand{}},
	}
	for _, tc := range cases {
		got, err := ParseCommand("~", tc.content)
		if err != nil {
			t.Fatalf("%q: %v", tc.content, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %#v want %#v", tc.content, got, tc.want)
		}
	}
}

func TestParseCommandRequiresPrefix(t *testing.T) {
	testlog.Start(t)
	for _, content := range []string{"new", "hello there", "~", "~   "} {
		if _, err := ParseCommand("~", content); !errors.Is(err, ErrNotCommand) {
			t.Fatalf("%q: expected ErrNotCommand, got %v", content, err)
		}
	}
}

func TestParseCommandUnknownVerb(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseCommand("~", "~dance"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestParseCommandStartRoundDelay(t *testing.T) {
	testlog.Start(t)
	cmd, err := ParseCommand("~", "~new 10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	start := cmd.(StartRoundCommand)
	if !start.HasMuteDelay || start.MuteDelay != 10*time.Second || start.NoInitialMute {
		t.Fatalf("unexpected command: %+v", start)
	}

	cmd, err = ParseCommand("~", "~new 0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if start := cmd.(StartRoundCommand); !start.NoInitialMute {
		t.Fatalf("zero delay should skip the initial mute: %+v", start)
	}

	var usage UsageError
	if _, err := ParseCommand("~", "~new soon"); !errors.As(err, &usage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestParseCommandDeadNeedsMention(t *testing.T) {
	testlog.Start(t)
	var usage UsageError
	if _, err := ParseCommand("~", "~dead"); !errors.As(err, &usage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := ParseCommand("~", "~dead bob"); !errors.As(err, &usage) {
		t.Fatalf("expected usage error for a bare name, got %v", err)
	}
}

func TestParseCommandLinkJoinsAlias(t *testing.T) {
	testlog.Start(t)
	cmd, err := ParseCommand("~", "~link Red Leader")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if link := cmd.(LinkCommand); link.Alias != "Red Leader" {
		t.Fatalf("unexpected alias: %q", link.Alias)
	}

	var usage UsageError
	if _, err := ParseCommand("~", "~link"); !errors.As(err, &usage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestCapabilityFor(t *testing.T) {
	testlog.Start(t)
	if CapabilityFor(EmojiMeeting) != CapabilityToggleMeeting {
		t.Fatalf("meeting emoji should toggle meetings")
	}
	if CapabilityFor(EmojiDead) != CapabilityMarkSelfDead {
		t.Fatalf("dead emoji should mark self dead")
	}
	if CapabilityFor("👍") != CapabilityNone {
		t.Fatalf("unrelated emoji should grant nothing")
	}
}
