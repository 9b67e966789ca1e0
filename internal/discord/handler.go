package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewcall/crewcall/internal/game"
)

// Handler wires typed commands and reaction capabilities onto the game core.
// Each inbound event is dispatched as its own unit of work; the handler is
// safe for concurrent use because all shared state lives in the store.
type Handler struct {
	store      *game.Store
	orch       *game.Orchestrator
	transport  game.Transport
	prefix     string
	startDelay time.Duration
	replyTTL   time.Duration
	shutdown   func()
	log        zerolog.Logger
}

func NewHandler(store *game.Store, orch *game.Orchestrator, transport game.Transport, prefix string, startDelay time.Duration, shutdown func(), log zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		orch:       orch,
		transport:  transport,
		prefix:     prefix,
		startDelay: startDelay,
		replyTTL:   5 * time.Second,
		shutdown:   shutdown,
		log:        log.With().Str("component", "handler").Logger(),
	}
}

// HandleMessage processes one chat message. Non-commands are ignored;
// recognized command messages are deleted to keep the channel clean.
func (h *Handler) HandleMessage(ctx context.Context, msg InboundMessage) {
	if msg.AuthorBot {
		return
	}
	cmd, err := ParseCommand(h.prefix, msg.Content)
	if err != nil {
		var usage UsageError
		switch {
		case errors.Is(err, ErrNotCommand):
			return
		case errors.As(err, &usage):
			h.deleteMessage(ctx, msg.Channel, msg.ID)
			h.reply(ctx, msg.Channel, usage.Hint)
			return
		default:
			return
		}
	}
	h.deleteMessage(ctx, msg.Channel, msg.ID)

	switch cmd := cmd.(type) {
	case StartRoundCommand:
		h.startRound(ctx, msg, cmd)
	case EndRoundCommand:
		if h.store.InControl(msg.Author) {
			h.endRound(ctx)
		}
	case MarkDeadCommand:
		h.markDead(ctx, msg, cmd.Target)
	case LinkCommand:
		h.store.SetAlias(msg.Author, cmd.Alias)
		h.ephemeralReply(ctx, msg.Channel, fmt.Sprintf("linked %s to %q", mention(msg.Author), cmd.Alias))
	case UnlinkCommand:
		if h.store.ClearAlias(msg.Author) {
			h.ephemeralReply(ctx, msg.Channel, fmt.Sprintf("unlinked %s", mention(msg.Author)))
		}
	case ShutdownCommand:
		if !h.store.InControl(msg.Author) {
			return
		}
		if h.store.Active() {
			h.endRound(ctx)
		}
		h.shutdown()
	}
}

// HandleReactionAdd dispatches control-message reactions by capability.
func (h *Handler) HandleReactionAdd(ctx context.Context, r Reaction) {
	if !h.store.IsControlMessage(r.Message) {
		return
	}
	switch CapabilityFor(r.Emoji) {
	case CapabilityToggleMeeting:
		if !h.store.InControl(r.User) {
			return
		}
		if _, ok := h.store.CompareAndSetPhase(game.PhaseInMeeting, game.PhasePreGame, game.PhaseInGame); ok {
			h.orch.StartMeeting(ctx, nil)
		}
	case CapabilityMarkSelfDead:
		h.applyDead(ctx, r.User)
	}
}

// HandleReactionRemove ends the meeting when the control user withdraws the
// meeting reaction.
func (h *Handler) HandleReactionRemove(ctx context.Context, r Reaction) {
	if !h.store.IsControlMessage(r.Message) {
		return
	}
	if CapabilityFor(r.Emoji) != CapabilityToggleMeeting || !h.store.InControl(r.User) {
		return
	}
	if _, ok := h.store.CompareAndSetPhase(game.PhaseInGame, game.PhaseInMeeting); ok {
		h.orch.EndMeeting(ctx, nil)
	}
}

func (h *Handler) startRound(ctx context.Context, msg InboundMessage, cmd StartRoundCommand) {
	if h.store.Active() {
		h.ephemeralReply(ctx, msg.Channel, "A round is already in progress")
		return
	}

	content := fmt.Sprintf(
		"A game is in progress, %s can react to this message with %s to call a meeting.\n"+
			"Anyone can react to this message with %s to access dead chat after the next meeting",
		mention(msg.Author), EmojiMeeting, EmojiDead,
	)
	ctrlMsg, err := h.transport.SendMessage(ctx, msg.Channel, content)
	if err != nil {
		h.log.Error().Err(err).Msg("control message send failed")
		return
	}

	// Adding reactions takes a moment each; don't hold up the round start.
	go func() {
		for _, emoji := range []string{EmojiMeeting, EmojiDead} {
			if err := h.transport.AddReaction(ctx, msg.Channel, ctrlMsg, emoji); err != nil {
				h.log.Warn().Err(err).Str("emoji", emoji).Msg("control reaction add failed")
			}
		}
	}()

	if err := h.store.StartRound(msg.Channel, ctrlMsg, msg.Author, msg.Guild); err != nil {
		h.log.Warn().Err(err).Msg("round start raced an existing round")
		h.deleteMessage(ctx, msg.Channel, ctrlMsg)
		return
	}
	h.store.SetPhase(game.PhaseInGame)

	if cmd.NoInitialMute {
		return
	}
	delay := h.startDelay
	if cmd.HasMuteDelay {
		delay = cmd.MuteDelay
	}
	go func() {
		h.sleep(ctx, delay)
		// Shutdown cancels the wait early; don't mute on the way out.
		if ctx.Err() != nil {
			return
		}
		h.orch.StartRound(ctx, nil)
	}()
}

func (h *Handler) endRound(ctx context.Context) {
	h.orch.EndRound(ctx)
	h.store.SetPhase(game.PhasePreGame)
}

func (h *Handler) markDead(ctx context.Context, msg InboundMessage, target game.UserID) {
	rec, active := h.store.Snapshot()
	if !active {
		h.reply(ctx, msg.Channel, "There is no game running")
		return
	}
	if !h.store.InControl(msg.Author) {
		h.reply(ctx, rec.ControlChannel,
			"You must have started the game or be an owner of the bot to make others dead\n"+
				"To make yourself dead, please use the reactions")
		return
	}
	h.ephemeralReply(ctx, rec.ControlChannel, fmt.Sprintf("deadifying %s", mention(target)))
	h.applyDead(ctx, target)
}

// applyDead marks a user dead and, mid-meeting, mutes them immediately so
// they cannot keep talking until the meeting resolves.
func (h *Handler) applyDead(ctx context.Context, target game.UserID) {
	isNew := h.store.MarkDead(target)
	if !isNew || !h.store.MeetingInProgress() {
		return
	}
	rec, ok := h.store.Snapshot()
	if !ok {
		return
	}
	h.orch.MuteNow(ctx, rec.Guild, target)
}

func (h *Handler) reply(ctx context.Context, channel game.ChannelID, text string) {
	if _, err := h.transport.SendMessage(ctx, channel, text); err != nil {
		h.log.Warn().Err(err).Msg("reply send failed")
	}
}

// ephemeralReply sends a message and deletes it again after a short delay.
func (h *Handler) ephemeralReply(ctx context.Context, channel game.ChannelID, text string) {
	id, err := h.transport.SendMessage(ctx, channel, text)
	if err != nil {
		h.log.Warn().Err(err).Msg("reply send failed")
		return
	}
	go func() {
		h.sleep(ctx, h.replyTTL)
		h.deleteMessage(ctx, channel, id)
	}()
}

func (h *Handler) deleteMessage(ctx context.Context, channel game.ChannelID, id game.MessageID) {
	if err := h.transport.DeleteMessage(ctx, channel, id); err != nil {
		h.log.Warn().Err(err).Msg("message delete failed")
	}
}

func (h *Handler) sleep(ctx context.Context, d time.Duration) {
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

func mention(id game.UserID) string {
	return fmt.Sprintf("<@%s>", id)
}
