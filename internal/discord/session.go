package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/crewcall/crewcall/internal/game"
)

// Session wraps a discordgo gateway session behind the game core's Transport
// and Membership interfaces, so nothing outside this package touches
// platform types.
type Session struct {
	dg            *discordgo.Session
	spectatorRole game.RoleID
	log           zerolog.Logger
}

func NewSession(token string, spectatorRole game.RoleID, log zerolog.Logger) (*Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: session create: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers
	dg.StateEnabled = true

	return &Session{
		dg:            dg,
		spectatorRole: spectatorRole,
		log:           log.With().Str("component", "discord").Logger(),
	}, nil
}

// Open connects to the gateway.
func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("discord: gateway open: %w", err)
	}
	return nil
}

// Close stops accepting gateway events. In-flight work is not cancelled.
func (s *Session) Close() error {
	return s.dg.Close()
}

// BotID returns the connected bot account's user id.
func (s *Session) BotID() game.UserID {
	if s.dg.State.User == nil {
		return ""
	}
	return game.UserID(s.dg.State.User.ID)
}

// ResolveOwners reads the application's owner or team members, merged with
// the configured owner ids.
func (s *Session) ResolveOwners(configured []string) ([]game.UserID, error) {
	app, err := s.dg.Application("@me")
	if err != nil {
		return nil, fmt.Errorf("discord: application info: %w", err)
	}
	seen := make(map[game.UserID]struct{})
	var out []game.UserID
	add := func(id game.UserID) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if app.Team != nil {
		for _, tm := range app.Team.Members {
			if tm.User != nil {
				add(game.UserID(tm.User.ID))
			}
		}
	} else if app.Owner != nil {
		add(game.UserID(app.Owner.ID))
	}
	for _, id := range configured {
		add(game.UserID(id))
	}
	return out, nil
}

// VerifyChannel confirms a configured channel exists. Absence is a fatal
// configuration error at startup.
func (s *Session) VerifyChannel(id game.ChannelID) error {
	if _, err := s.dg.Channel(string(id)); err != nil {
		return fmt.Errorf("discord: channel %s not reachable: %w", id, err)
	}
	return nil
}

// Bind attaches gateway event handlers; each event is dispatched as its own
// unit of work.
func (s *Session) Bind(ctx context.Context, h *Handler) {
	s.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || game.UserID(m.Author.ID) == s.BotID() {
			return
		}
		msg := InboundMessage{
			ID:        game.MessageID(m.ID),
			Channel:   game.ChannelID(m.ChannelID),
			Guild:     game.GuildID(m.GuildID),
			Author:    game.UserID(m.Author.ID),
			AuthorBot: m.Author.Bot,
			Content:   m.Content,
		}
		go h.HandleMessage(ctx, msg)
	})
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if game.UserID(r.UserID) == s.BotID() {
			return
		}
		go h.HandleReactionAdd(ctx, reactionOf(r.MessageReaction))
	})
	s.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
		if game.UserID(r.UserID) == s.BotID() {
			return
		}
		go h.HandleReactionRemove(ctx, reactionOf(r.MessageReaction))
	})
}

func reactionOf(r *discordgo.MessageReaction) Reaction {
	return Reaction{
		Channel: game.ChannelID(r.ChannelID),
		Message: game.MessageID(r.MessageID),
		User:    game.UserID(r.UserID),
		Emoji:   r.Emoji.Name,
	}
}

// SendMessage implements game.Transport.
func (s *Session) SendMessage(_ context.Context, channel game.ChannelID, content string) (game.MessageID, error) {
	msg, err := s.dg.ChannelMessageSend(string(channel), content)
	if err != nil {
		return "", fmt.Errorf("discord: message send: %w", err)
	}
	return game.MessageID(msg.ID), nil
}

// DeleteMessage implements game.Transport.
func (s *Session) DeleteMessage(_ context.Context, channel game.ChannelID, id game.MessageID) error {
	if err := s.dg.ChannelMessageDelete(string(channel), string(id)); err != nil {
		return fmt.Errorf("discord: message delete: %w", err)
	}
	return nil
}

// AddReaction implements game.Transport.
func (s *Session) AddReaction(_ context.Context, channel game.ChannelID, id game.MessageID, emoji string) error {
	if err := s.dg.MessageReactionAdd(string(channel), string(id), emoji); err != nil {
		return fmt.Errorf("discord: reaction add: %w", err)
	}
	return nil
}

// UpdateVoiceState implements game.Transport.
func (s *Session) UpdateVoiceState(_ context.Context, guild game.GuildID, user game.UserID, target game.VoiceTarget) error {
	params := &discordgo.GuildMemberParams{
		Mute: target.Mute,
		Deaf: target.Deaf,
	}
	if target.Channel != nil {
		ch := string(*target.Channel)
		params.ChannelID = &ch
	}
	if _, err := s.dg.GuildMemberEdit(string(guild), string(user), params); err != nil {
		return fmt.Errorf("discord: voice state update: %w", err)
	}
	return nil
}

// Occupants implements game.Membership from the gateway's voice-state cache,
// excluding the bot itself and spectator-role holders.
func (s *Session) Occupants(channel game.ChannelID) ([]game.Occupant, error) {
	botID := s.BotID()
	var out []game.Occupant
	for _, guild := range s.dg.State.Guilds {
		for _, vs := range guild.VoiceStates {
			if vs.ChannelID != string(channel) {
				continue
			}
			member, err := s.member(guild.ID, vs.UserID)
			if err != nil {
				s.log.Warn().Err(err).Str("user", vs.UserID).Msg("voice member lookup failed")
				continue
			}
			if member.User == nil || member.User.Bot || game.UserID(member.User.ID) == botID {
				continue
			}
			if s.isSpectator(member) {
				continue
			}
			out = append(out, game.Occupant{
				UserID:      game.UserID(member.User.ID),
				GuildID:     game.GuildID(guild.ID),
				Roles:       roleIDs(member.Roles),
				DisplayName: member.Nick,
				UserName:    member.User.Username,
			})
		}
	}
	return out, nil
}

func (s *Session) member(guildID, userID string) (*discordgo.Member, error) {
	if m, err := s.dg.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	return s.dg.GuildMember(guildID, userID)
}

func (s *Session) isSpectator(m *discordgo.Member) bool {
	if s.spectatorRole == "" {
		return false
	}
	for _, role := range m.Roles {
		if game.RoleID(role) == s.spectatorRole {
			return true
		}
	}
	return false
}

func roleIDs(roles []string) []game.RoleID {
	out := make([]game.RoleID, 0, len(roles))
	for _, r := range roles {
		out = append(out, game.RoleID(r))
	}
	return out
}
