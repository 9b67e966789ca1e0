package game

// MatchResult pairs one occupant with the player it resolved to, or nil when
// no roster entry matched.
type MatchResult struct {
	Occupant Occupant
	Player   *Player
}

// Match resolves voice-channel occupants to named players. The lookup key is
// the operator-assigned alias when present, else the occupant's display name,
// else the account name. Matching is exact and case-sensitive. When the
// roster contains duplicate names the first entry in roster order wins, which
// keeps the tie-break deterministic. An occupant with no match is a
// legitimate outcome, surfaced to operators rather than treated as an error.
func Match(occupants []Occupant, players []Player, aliases map[UserID]string) []MatchResult {
	out := make([]MatchResult, 0, len(occupants))
	for _, occ := range occupants {
		key := lookupKey(occ, aliases)
		var matched *Player
		for i := range players {
			if players[i].Name == key {
				matched = &players[i]
				break
			}
		}
		out = append(out, MatchResult{Occupant: occ, Player: matched})
	}
	return out
}

// Unmatched filters the occupants that resolved to no player.
func Unmatched(results []MatchResult) []Occupant {
	var out []Occupant
	for _, r := range results {
		if r.Player == nil {
			out = append(out, r.Occupant)
		}
	}
	return out
}

func lookupKey(occ Occupant, aliases map[UserID]string) string {
	if alias, ok := aliases[occ.UserID]; ok && alias != "" {
		return alias
	}
	if occ.DisplayName != "" {
		return occ.DisplayName
	}
	return occ.UserName
}
