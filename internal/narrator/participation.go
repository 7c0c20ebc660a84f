package narrator

import (
	"strings"

	"character-chat/internal/models"
)

// shouldRespond decides whether a personality takes part in the current
// turn. List order is significant: earlier characters' same-turn replies are
// visible here, so a mention by an earlier character pulls the mentioned one
// into the turn.
func (s *Service) shouldRespond(p models.Personality, group []models.Personality, userMessage string, history []models.Message, turnSoFar []models.CharacterTurn) bool {
	// A lone character always answers.
	if len(group) == 1 {
		return true
	}

	// Direct address overrides everything else.
	if containsName(userMessage, p.Name) {
		return true
	}
	for _, t := range turnSoFar {
		if containsName(t.Reply, p.Name) {
			return true
		}
	}

	// Throttle characters that dominated the recent history.
	if s.recentActivity(p.ID, history) >= s.cfg.RecentThreshold {
		return s.rng.Float64() >= s.cfg.ThrottleSkipChance
	}

	return s.rng.Float64() < s.groupChance(len(group))
}

// recentActivity counts the personality's messages among the last
// RecentWindow history entries.
func (s *Service) recentActivity(personalityID string, history []models.Message) int {
	start := len(history) - s.cfg.RecentWindow
	if start < 0 {
		start = 0
	}

	count := 0
	for _, m := range history[start:] {
		if m.SenderID == personalityID {
			count++
		}
	}
	return count
}

// groupChance is the baseline participation probability, decreasing with
// group size.
func (s *Service) groupChance(size int) float64 {
	switch {
	case size <= 2:
		return s.cfg.PairChance
	case size == 3:
		return s.cfg.TrioChance
	default:
		return s.cfg.CrowdChance
	}
}

// containsName reports whether text mentions the name as a case-insensitive
// substring.
func containsName(text, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(name))
}
