package game

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/crewcall/crewcall/internal/testutil/testlog"
)

func TestStoreRoundLifecycle(t *testing.T) {
	testlog.Start(t)
	s := NewStore()

	if s.Active() {
		t.Fatalf("store active before round start")
	}
	if err := s.StartRound("chan.ctrl", "msg.ctrl", "user.a", "guild.1"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	if err := s.StartRound("chan.ctrl", "msg.other", "user.b", "guild.1"); !errors.Is(err, ErrRoundActive) {
		t.Fatalf("expected ErrRoundActive, got %v", err)
	}

	rec, ok := s.Snapshot()
	if !ok {
		t.Fatalf("missing record snapshot")
	}
	if rec.ControlUser != "user.a" || rec.ControlMessage != "msg.ctrl" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	taken, ok := s.EndRound()
	if !ok || taken.ControlUser != "user.a" {
		t.Fatalf("unexpected end round: ok=%v rec=%+v", ok, taken)
	}
	if _, ok := s.EndRound(); ok {
		t.Fatalf("second end round should find no record")
	}
}

func TestStoreMarkDeadIsIdempotent(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	if s.MarkDead("user.x") {
		t.Fatalf("mark dead with no round should be false")
	}
	if err := s.StartRound("chan", "msg", "user.a", "guild"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	if !s.MarkDead("user.x") {
		t.Fatalf("first mark should be new")
	}
	if s.MarkDead("user.x") {
		t.Fatalf("second mark should not be new")
	}
	rec, _ := s.Snapshot()
	if !rec.IsDead("user.x") || rec.IsDead("user.y") {
		t.Fatalf("unexpected dead set: %+v", rec.Dead)
	}
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	if err := s.StartRound("chan", "msg", "user.a", "guild"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	rec, _ := s.Snapshot()
	rec.Dead["user.z"] = struct{}{}
	fresh, _ := s.Snapshot()
	if fresh.IsDead("user.z") {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestStoreControlAuthorization(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	s.SetOwners([]UserID{"user.owner"})

	if !s.InControl("user.owner") {
		t.Fatalf("owner should always be in control")
	}
	if s.InControl("user.a") {
		t.Fatalf("non-owner in control with no round")
	}
	if err := s.StartRound("chan", "msg", "user.a", "guild"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	if !s.InControl("user.a") {
		t.Fatalf("control user should be in control")
	}
	if s.InControl("user.b") {
		t.Fatalf("bystander should not be in control")
	}
	if !s.IsControlMessage("msg") || s.IsControlMessage("msg.other") {
		t.Fatalf("control message identity check failed")
	}
}

func TestStorePhaseAndMeetingFlag(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	if s.Phase() != PhasePreGame {
		t.Fatalf("initial phase should be pregame")
	}
	if prev := s.SetPhase(PhaseInGame); prev != PhasePreGame {
		t.Fatalf("unexpected prior phase: %v", prev)
	}

	s.SetMeetingInProgress(true)
	if s.MeetingInProgress() {
		t.Fatalf("meeting flag set with no round")
	}
	if err := s.StartRound("chan", "msg", "user.a", "guild"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	s.SetMeetingInProgress(true)
	if !s.MeetingInProgress() {
		t.Fatalf("meeting flag not set")
	}
}

func TestStoreCompareAndSetPhase(t *testing.T) {
	testlog.Start(t)
	s := NewStore()

	prev, ok := s.CompareAndSetPhase(PhaseInMeeting, PhasePreGame, PhaseInGame)
	if !ok || prev != PhasePreGame {
		t.Fatalf("claim from pregame should win: prev=%v ok=%v", prev, ok)
	}
	if _, ok := s.CompareAndSetPhase(PhaseInMeeting, PhasePreGame, PhaseInGame); ok {
		t.Fatalf("second claim of the same transition should lose")
	}
	if s.Phase() != PhaseInMeeting {
		t.Fatalf("losing claim must not change the phase: %v", s.Phase())
	}
	if prev, ok := s.CompareAndSetPhase(PhaseInGame, PhaseInMeeting); !ok || prev != PhaseInMeeting {
		t.Fatalf("claim from in-meeting should win: prev=%v ok=%v", prev, ok)
	}
}

func TestStoreAliases(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	s.SetAlias("user.a", "Red")
	if got := s.Aliases()["user.a"]; got != "Red" {
		t.Fatalf("unexpected alias: %q", got)
	}
	if !s.ClearAlias("user.a") {
		t.Fatalf("clear should report an existing alias")
	}
	if s.ClearAlias("user.a") {
		t.Fatalf("second clear should report nothing")
	}
}

func TestStoreConcurrentReadersAndWriters(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	if err := s.StartRound("chan", "msg", "user.a", "guild"); err != nil {
		t.Fatalf("start round: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Snapshot()
				s.InControl("user.a")
				s.Phase()
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.MarkDead(UserID(fmt.Sprintf("user.%d", i)))
				s.SetMeetingInProgress(j%2 == 0)
			}
		}(i)
	}
	wg.Wait()
}
