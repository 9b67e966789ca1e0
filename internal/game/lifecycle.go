package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewcall/crewcall/internal/capture"
	"github.com/crewcall/crewcall/internal/observability"
)

var ErrFeedClosed = errors.New("game: observed-state feed closed")

// StateFeed delivers observations latest-value-first; the watcher suspends on
// Next and never spins. Latest re-samples without consuming.
type StateFeed interface {
	Next(ctx context.Context) (capture.State, bool)
	Latest() (capture.State, bool)
}

// Watcher drives lifecycle phase transitions from the observed-state feed.
// Transitions are claimed atomically on phase change, so repeated identical
// observations and racing triggers never re-run orchestration.
type Watcher struct {
	store       *Store
	orch        *Orchestrator
	feed        StateFeed
	settleDelay time.Duration
	log         zerolog.Logger

	// sleep is swapped out by tests; defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration)
}

func NewWatcher(store *Store, orch *Orchestrator, feed StateFeed, settleDelay time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{
		store:       store,
		orch:        orch,
		feed:        feed,
		settleDelay: settleDelay,
		log:         log.With().Str("component", "lifecycle").Logger(),
		sleep:       sleepCtx,
	}
}

// Run consumes the feed until the context is cancelled or the feed closes.
// Closure is fatal to the watcher: without ground truth it cannot continue.
// Chat-driven control keeps working independently.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		state, ok := w.feed.Next(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.log.Error().Msg("observed-state feed closed; lifecycle watcher stopping")
			return ErrFeedClosed
		}
		w.Observe(ctx, state)
	}
}

// Observe applies one observation to the phase machine and invokes the
// matching orchestration routine when it wins the phase change.
func (w *Watcher) Observe(ctx context.Context, state capture.State) {
	switch {
	case !state.InRound():
		// Lobby, menu, or a disconnected client: no round.
		if _, ok := w.transition(PhasePreGame, PhaseInGame, PhaseInMeeting); ok {
			w.orch.EndRound(ctx)
		} else {
			w.transition(PhasePreGame, PhaseGameOver)
		}

	case state.Meeting.InMeeting():
		if _, ok := w.transition(PhaseInMeeting, PhasePreGame, PhaseInGame); ok {
			w.orch.StartMeeting(ctx, toRoster(state.Players))
		}

	default:
		// Gameplay sub-state.
		if _, ok := w.transition(PhaseInGame, PhaseInMeeting); ok {
			roster := w.settled(ctx, toRoster(state.Players))
			if concluded, _ := w.orch.EndMeeting(ctx, roster); concluded {
				w.transition(PhaseGameOver, PhaseInGame)
			}
		} else if _, ok := w.transition(PhaseInGame, PhasePreGame); ok {
			w.orch.StartRound(ctx, toRoster(state.Players))
		}
	}
}

// settled waits out the settle delay and re-samples the newest observation,
// so round conclusion is judged on post-meeting data rather than the
// observation that ended the meeting. An ejection reported moments after the
// meeting closes is still seen.
func (w *Watcher) settled(ctx context.Context, roster []Player) []Player {
	if len(roster) == 0 {
		return roster
	}
	w.sleep(ctx, w.settleDelay)
	if s, ok := w.feed.Latest(); ok && s.InRound() && len(s.Players) > 0 {
		return toRoster(s.Players)
	}
	return roster
}

// transition atomically claims a phase change from any of the given phases.
func (w *Watcher) transition(to Phase, from ...Phase) (Phase, bool) {
	prev, ok := w.store.CompareAndSetPhase(to, from...)
	if !ok {
		return prev, false
	}
	observability.RecordPhaseTransition(prev.String(), to.String())
	w.log.Info().Str("from", prev.String()).Str("to", to.String()).Msg("lifecycle transition")
	return prev, true
}

func toRoster(players []capture.Player) []Player {
	if len(players) == 0 {
		return nil
	}
	out := make([]Player, 0, len(players))
	for _, p := range players {
		out = append(out, Player{Name: p.Name, Dead: p.Dead, Impostor: p.Impostor})
	}
	return out
}
