package game

import (
	"errors"
	"sync"
)

var ErrRoundActive = errors.New("game: a round is already active")

// Store owns the single mutable Record plus the lifecycle phase. All
// mutation goes through its methods and readers get copies, so the lock is
// never held across remote calls.
type Store struct {
	mu      sync.RWMutex
	record  *Record
	phase   Phase
	owners  map[UserID]struct{}
	aliases map[UserID]string
}

func NewStore() *Store {
	return &Store{
		owners:  make(map[UserID]struct{}),
		aliases: make(map[UserID]string),
	}
}

// Snapshot returns a copy of the active round record, if any.
func (s *Store) Snapshot() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return Record{}, false
	}
	out := *s.record
	out.Dead = cloneDead(s.record.Dead)
	return out, true
}

// Active reports whether a round is in progress.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record != nil
}

// StartRound creates the round record. Starting while a round is active is a
// logical error, not fatal; callers should check Active first.
func (s *Store) StartRound(ctrlChannel ChannelID, ctrlMsg MessageID, ctrlUser UserID, guild GuildID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record != nil {
		return ErrRoundActive
	}
	s.record = &Record{
		Dead:           make(map[UserID]struct{}),
		ControlChannel: ctrlChannel,
		ControlMessage: ctrlMsg,
		ControlUser:    ctrlUser,
		Guild:          guild,
	}
	return nil
}

// EndRound atomically removes and returns the round record.
func (s *Store) EndRound() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, false
	}
	out := *s.record
	out.Dead = cloneDead(s.record.Dead)
	s.record = nil
	return out, true
}

// MarkDead adds a user to the dead set. Returns true when this is a new
// addition; the dead set is a set, so marking twice is idempotent.
func (s *Store) MarkDead(id UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return false
	}
	if _, ok := s.record.Dead[id]; ok {
		return false
	}
	s.record.Dead[id] = struct{}{}
	return true
}

// SetMeetingInProgress flips the meeting flag on the active record.
func (s *Store) SetMeetingInProgress(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record != nil {
		s.record.MeetingInProgress = v
	}
}

// MeetingInProgress reports the meeting flag of the active record.
func (s *Store) MeetingInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record != nil && s.record.MeetingInProgress
}

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase commits a lifecycle phase change and returns the prior phase.
func (s *Store) SetPhase(p Phase) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.phase
	s.phase = p
	return prev
}

// CompareAndSetPhase commits the phase change only when the current phase is
// one of from, so racing triggers resolve to a single winner. Returns the
// prior phase and whether the swap happened.
func (s *Store) CompareAndSetPhase(to Phase, from ...Phase) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.phase
	for _, f := range from {
		if prev == f {
			s.phase = to
			return prev, true
		}
	}
	return prev, false
}

// SetOwners replaces the bot-owner set resolved at startup.
func (s *Store) SetOwners(ids []UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = make(map[UserID]struct{}, len(ids))
	for _, id := range ids {
		s.owners[id] = struct{}{}
	}
}

// InControl reports whether a user may drive lifecycle transitions: the
// round's control user, or any bot owner.
func (s *Store) InControl(id UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.owners[id]; ok {
		return true
	}
	return s.record != nil && s.record.ControlUser == id
}

// IsControlMessage reports whether the given message is the active round's
// control message.
func (s *Store) IsControlMessage(id MessageID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record != nil && s.record.ControlMessage == id
}

// SetAlias records an operator-assigned in-game name for a user.
func (s *Store) SetAlias(id UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[id] = name
}

// ClearAlias removes a user's alias override. Returns true when one existed.
func (s *Store) ClearAlias(id UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[id]; !ok {
		return false
	}
	delete(s.aliases, id)
	return true
}

// Aliases returns a copy of the alias override map.
func (s *Store) Aliases() map[UserID]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[UserID]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}
