package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewcall/crewcall/internal/observability"
)

// VoiceTarget is the desired audio configuration for one member. Nil fields
// are left untouched by the transport.
type VoiceTarget struct {
	Mute    *bool
	Deaf    *bool
	Channel *ChannelID
}

// MutationRequest is one independent remote voice-state mutation.
type MutationRequest struct {
	Guild  GuildID
	User   UserID
	Target VoiceTarget
}

// BatchFailure records one failed mutation with its cause.
type BatchFailure struct {
	Request MutationRequest
	Err     error
}

// BatchResult aggregates a batch: successes are never rolled back when
// siblings fail.
type BatchResult struct {
	Applied int
	Failed  []BatchFailure
}

// Transport is the chat-platform boundary consumed by orchestration. Every
// call is independently fallible.
type Transport interface {
	SendMessage(ctx context.Context, channel ChannelID, content string) (MessageID, error)
	DeleteMessage(ctx context.Context, channel ChannelID, msg MessageID) error
	AddReaction(ctx context.Context, channel ChannelID, msg MessageID, emoji string) error
	UpdateVoiceState(ctx context.Context, guild GuildID, user UserID, target VoiceTarget) error
}

// Membership reads live voice-channel occupancy from the transport's cache.
type Membership interface {
	Occupants(channel ChannelID) ([]Occupant, error)
}

// Settings is the orchestration surface of the loaded configuration.
type Settings struct {
	LivingChannel ChannelID
	DeadChannel   ChannelID
	// DeafenMuted also toggles server deafen alongside every mute change.
	DeafenMuted bool
}

// Orchestrator computes per-member voice targets from the store plus live
// membership and applies them through the transport. It never holds the
// store lock across remote calls.
type Orchestrator struct {
	store     *Store
	transport Transport
	members   Membership
	cfg       Settings
	log       zerolog.Logger
}

func NewOrchestrator(store *Store, transport Transport, members Membership, cfg Settings, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		transport: transport,
		members:   members,
		cfg:       cfg,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// RoundConcluded reports whether the round is over: every impostor is dead,
// or surviving impostors can no longer be outvoted by surviving crew.
func RoundConcluded(roster []Player) bool {
	if len(roster) == 0 {
		return false
	}
	var impostors, crew int
	for _, p := range roster {
		if p.Dead {
			continue
		}
		if p.Impostor {
			impostors++
		} else {
			crew++
		}
	}
	return impostors == 0 || impostors >= crew
}

// StartRound applies the initial mute: every living-channel occupant that
// resolves to a living player is muted.
func (o *Orchestrator) StartRound(ctx context.Context, roster []Player) BatchResult {
	living, _, err := o.partitionLiving(ctx, roster)
	if err != nil {
		o.log.Error().Err(err).Msg("start round: membership read failed")
		return BatchResult{}
	}

	reqs := make([]MutationRequest, 0, len(living))
	for _, occ := range living {
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: o.muted()})
	}
	return o.batchApply(ctx, "start_round", reqs)
}

// StartMeeting unmutes living players and pulls dead-channel occupants back
// into the living channel, silenced, so they can observe the discussion.
// The meeting flag is committed only after the batch completes.
func (o *Orchestrator) StartMeeting(ctx context.Context, roster []Player) BatchResult {
	living, _, err := o.partitionLiving(ctx, roster)
	if err != nil {
		o.log.Error().Err(err).Msg("start meeting: membership read failed")
		return BatchResult{}
	}

	var reqs []MutationRequest
	for _, occ := range living {
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: o.unmuted()})
	}

	deadOccupants, err := o.members.Occupants(o.cfg.DeadChannel)
	if err != nil {
		o.log.Error().Err(err).Msg("start meeting: dead channel read failed")
	}
	for _, occ := range deadOccupants {
		target := o.muted()
		target.Channel = channelRef(o.cfg.LivingChannel)
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: target})
	}

	result := o.batchApply(ctx, "start_meeting", reqs)
	o.store.SetMeetingInProgress(true)
	return result
}

// EndMeeting either routes to EndRound when the round has concluded or
// re-mutes for gameplay: living players are muted, dead players are moved to
// the dead channel and unmuted. Returns whether the round concluded. Callers
// judging conclusion from an observed roster should settle it first, so the
// check runs on post-meeting data.
func (o *Orchestrator) EndMeeting(ctx context.Context, roster []Player) (bool, BatchResult) {
	if len(roster) > 0 && RoundConcluded(roster) {
		return true, o.EndRound(ctx)
	}

	living, dead, err := o.partitionLiving(ctx, roster)
	if err != nil {
		o.log.Error().Err(err).Msg("end meeting: membership read failed")
		return false, BatchResult{}
	}

	reqs := make([]MutationRequest, 0, len(living)+len(dead))
	for _, occ := range living {
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: o.muted()})
	}
	for _, occ := range dead {
		target := o.unmuted()
		target.Channel = channelRef(o.cfg.DeadChannel)
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: target})
	}

	result := o.batchApply(ctx, "end_meeting", reqs)
	o.store.SetMeetingInProgress(false)
	return false, result
}

// EndRound tears the round down: the control message is deleted, everyone in
// the living channel is unmuted, and dead-channel occupants are moved back.
// With no active record it performs no remote mutations, which makes a second
// invocation a no-op.
func (o *Orchestrator) EndRound(ctx context.Context) BatchResult {
	rec, ok := o.store.EndRound()
	if !ok {
		return BatchResult{}
	}

	if err := o.transport.DeleteMessage(ctx, rec.ControlChannel, rec.ControlMessage); err != nil {
		o.log.Warn().Err(err).Msg("end round: control message delete failed")
	}

	var reqs []MutationRequest
	livingOccupants, err := o.members.Occupants(o.cfg.LivingChannel)
	if err != nil {
		o.log.Error().Err(err).Msg("end round: living channel read failed")
	}
	for _, occ := range livingOccupants {
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: o.unmuted()})
	}
	deadOccupants, err := o.members.Occupants(o.cfg.DeadChannel)
	if err != nil {
		o.log.Error().Err(err).Msg("end round: dead channel read failed")
	}
	for _, occ := range deadOccupants {
		reqs = append(reqs, MutationRequest{Guild: occ.GuildID, User: occ.UserID, Target: VoiceTarget{Channel: channelRef(o.cfg.LivingChannel)}})
	}

	return o.batchApplyNotify(ctx, "end_round", reqs, rec.ControlChannel)
}

// MuteNow applies a single immediate mute, used when a player is marked dead
// mid-meeting. Failure is logged, never escalated.
func (o *Orchestrator) MuteNow(ctx context.Context, guild GuildID, user UserID) {
	if err := o.transport.UpdateVoiceState(ctx, guild, user, o.muted()); err != nil {
		o.log.Error().Err(err).Str("user", string(user)).Msg("immediate mute failed")
	}
}

// partitionLiving reads the living channel and splits occupants into living
// and dead. With a roster, occupants are resolved through the identity
// matcher; unmatched occupants are reported and excluded. Without one, the
// round's dead set alone decides.
func (o *Orchestrator) partitionLiving(ctx context.Context, roster []Player) (living, dead []Occupant, err error) {
	occupants, err := o.members.Occupants(o.cfg.LivingChannel)
	if err != nil {
		return nil, nil, err
	}
	rec, hasRec := o.store.Snapshot()

	if len(roster) == 0 {
		for _, occ := range occupants {
			if hasRec && rec.IsDead(occ.UserID) {
				dead = append(dead, occ)
			} else {
				living = append(living, occ)
			}
		}
		return living, dead, nil
	}

	results := Match(occupants, roster, o.store.Aliases())
	for _, r := range results {
		switch {
		case r.Player == nil:
			continue
		case r.Player.Dead || (hasRec && rec.IsDead(r.Occupant.UserID)):
			dead = append(dead, r.Occupant)
		default:
			living = append(living, r.Occupant)
		}
	}
	o.reportUnmatched(ctx, Unmatched(results), rec, hasRec)
	return living, dead, nil
}

func (o *Orchestrator) reportUnmatched(ctx context.Context, unmatched []Occupant, rec Record, hasRec bool) {
	if len(unmatched) == 0 {
		return
	}
	names := make([]string, 0, len(unmatched))
	for _, occ := range unmatched {
		names = append(names, displayOf(occ))
	}
	o.log.Info().Strs("members", names).Msg("could not match voice members to players")
	if hasRec {
		text := fmt.Sprintf("could not match %d member(s) to in-game players: %s", len(unmatched), strings.Join(names, ", "))
		if _, err := o.transport.SendMessage(ctx, rec.ControlChannel, text); err != nil {
			o.log.Warn().Err(err).Msg("unmatched report send failed")
		}
	}
}

func displayOf(occ Occupant) string {
	if occ.DisplayName != "" {
		return occ.DisplayName
	}
	return occ.UserName
}

func (o *Orchestrator) batchApply(ctx context.Context, routine string, reqs []MutationRequest) BatchResult {
	notify := ChannelID("")
	if rec, ok := o.store.Snapshot(); ok {
		notify = rec.ControlChannel
	}
	return o.batchApplyNotify(ctx, routine, reqs, notify)
}

// batchApplyNotify issues every request concurrently, waits for all of them,
// and collects failures without aborting siblings. A non-empty failure set
// produces one aggregated control-channel notification plus per-failure logs.
func (o *Orchestrator) batchApplyNotify(ctx context.Context, routine string, reqs []MutationRequest, notify ChannelID) BatchResult {
	start := time.Now()

	var (
		mu     sync.Mutex
		failed []BatchFailure
		wg     sync.WaitGroup
	)
	for _, req := range reqs {
		wg.Add(1)
		go func(req MutationRequest) {
			defer wg.Done()
			if err := o.transport.UpdateVoiceState(ctx, req.Guild, req.User, req.Target); err != nil {
				mu.Lock()
				failed = append(failed, BatchFailure{Request: req, Err: err})
				mu.Unlock()
			}
		}(req)
	}
	wg.Wait()

	result := BatchResult{Applied: len(reqs) - len(failed), Failed: failed}
	observability.RecordBatch(routine, result.Applied, len(failed), time.Since(start))
	o.log.Debug().
		Str("routine", routine).
		Int("applied", result.Applied).
		Int("failed", len(failed)).
		Msg("mutation batch done")

	if len(failed) > 0 {
		for _, f := range failed {
			o.log.Error().
				Err(f.Err).
				Str("routine", routine).
				Str("user", string(f.Request.User)).
				Msg("voice-state mutation failed")
		}
		if notify != "" {
			text := fmt.Sprintf("%d voice update(s) failed; check the log", len(failed))
			if _, err := o.transport.SendMessage(ctx, notify, text); err != nil {
				o.log.Warn().Err(err).Msg("failure notification send failed")
			}
		}
	}
	return result
}

func (o *Orchestrator) muted() VoiceTarget {
	t := VoiceTarget{Mute: boolRef(true)}
	if o.cfg.DeafenMuted {
		t.Deaf = boolRef(true)
	}
	return t
}

func (o *Orchestrator) unmuted() VoiceTarget {
	t := VoiceTarget{Mute: boolRef(false)}
	if o.cfg.DeafenMuted {
		t.Deaf = boolRef(false)
	}
	return t
}

func boolRef(v bool) *bool { return &v }

func channelRef(c ChannelID) *ChannelID { return &c }
