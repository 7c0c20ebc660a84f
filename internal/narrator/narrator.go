// Package narrator implements the turn orchestration engine: given a user
// message, the chat's personalities and the trailing history, it decides
// which characters speak, generates each reply through the text gateway,
// interleaves optional narrator fragments, and attaches an image prompt per
// reply. Processing is strictly sequential across characters within a turn
// so that later characters see earlier same-turn replies.
package narrator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"character-chat/internal/gateway"
	"character-chat/internal/models"
)

// TextGenerator is the slice of the text gateway the orchestrator needs.
type TextGenerator interface {
	Generate(ctx context.Context, messages []gateway.Message, cfg models.ProviderConfig) (*gateway.TextResult, error)
}

// Config holds the orchestration tunables. The defaults reflect the shipped
// behavior; tests override them for determinism.
type Config struct {
	// OpeningChance is the probability of a scene-setting narration at the
	// start of a turn.
	OpeningChance float64

	// BracketChance is the per-character probability of a narrator
	// action/gesture fragment attached before or after the reply.
	BracketChance float64

	// ThrottleSkipChance is the probability that a recently chatty character
	// sits the turn out.
	ThrottleSkipChance float64

	// RecentWindow and RecentThreshold define "recently chatty": at least
	// RecentThreshold messages by the character among the last RecentWindow
	// history entries.
	RecentWindow    int
	RecentThreshold int

	// OpeningHistory and ReplyHistory bound how many trailing history lines
	// feed the opening-narration and reply prompts.
	OpeningHistory int
	ReplyHistory   int

	// Participation probabilities by group size. Must decrease as the group
	// grows; the name-mention override takes absolute precedence over them.
	PairChance  float64
	TrioChance  float64
	CrowdChance float64

	// CharacterPause is the artificial pacing delay between characters. It
	// has no correctness role and may be zero.
	CharacterPause time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		OpeningChance:      0.3,
		BracketChance:      0.4,
		ThrottleSkipChance: 0.6,
		RecentWindow:       5,
		RecentThreshold:    2,
		OpeningHistory:     4,
		ReplyHistory:       8,
		PairChance:         0.8,
		TrioChance:         0.7,
		CrowdChance:        0.5,
		CharacterPause:     200 * time.Millisecond,
	}
}

// placeholderReply stands in for a character whose reply generation failed.
// A failed reply degrades the turn entry, it never drops the character.
const placeholderReply = "…"

// Service is the turn orchestrator. It holds no mutable state across calls
// beyond the injected random source and is safe to invoke concurrently for
// different chats.
type Service struct {
	text   TextGenerator
	cfg    Config
	rng    *rand.Rand
	logger *zap.Logger
}

// New creates an orchestrator. rng drives every probabilistic decision so
// callers can make turns deterministic; a nil rng gets a time-seeded one.
func New(text TextGenerator, cfg Config, rng *rand.Rand, logger *zap.Logger) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		text:   text,
		cfg:    cfg,
		rng:    rng,
		logger: logger,
	}
}

// ProcessTurn runs one full turn for the given user message. It returns a
// turn with one entry per participating character, each with a non-empty
// reply and image prompt. Characters already processed when the context is
// cancelled are kept; the turn is never rolled back.
func (s *Service) ProcessTurn(ctx context.Context, userMessage string, personalities []models.Personality, history []models.Message, provider models.ProviderConfig) (*models.NarratorTurn, error) {
	if len(personalities) == 0 {
		return nil, fmt.Errorf("at least one personality is required")
	}

	turn := &models.NarratorTurn{}

	if s.rng.Float64() < s.cfg.OpeningChance {
		turn.OpeningNarration = s.openingNarration(ctx, userMessage, personalities, history, provider)
	}

	for i, p := range personalities {
		if ctx.Err() != nil {
			break
		}

		if !s.shouldRespond(p, personalities, userMessage, history, turn.CharacterTurns) {
			s.logger.Debug("character skipped",
				zap.String("character_id", p.ID),
				zap.String("character", p.Name))
			continue
		}

		ct := s.characterTurn(ctx, p, personalities, userMessage, history, turn.CharacterTurns, provider)
		turn.CharacterTurns = append(turn.CharacterTurns, ct)

		s.logger.Info("character responded",
			zap.String("character_id", p.ID),
			zap.String("character", p.Name),
			zap.Int("reply_length", len(ct.Reply)))

		if i < len(personalities)-1 {
			s.pause(ctx)
		}
	}

	if ctx.Err() != nil && len(turn.CharacterTurns) == 0 {
		return nil, ctx.Err()
	}
	return turn, nil
}

// openingNarration asks for a short scene-setting fragment. Narration is
// decorative: on failure the turn simply goes without it.
func (s *Service) openingNarration(ctx context.Context, userMessage string, personalities []models.Personality, history []models.Message, provider models.ProviderConfig) string {
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: openingPrompt(personalities, history, s.cfg.OpeningHistory)},
		{Role: gateway.RoleUser, Content: userMessage},
	}

	result, err := s.text.Generate(ctx, messages, provider)
	if err != nil {
		s.logger.Debug("opening narration skipped", zap.Error(err))
		return ""
	}
	return stripActions(result.Content)
}

func (s *Service) characterTurn(ctx context.Context, p models.Personality, group []models.Personality, userMessage string, history []models.Message, turnSoFar []models.CharacterTurn, provider models.ProviderConfig) models.CharacterTurn {
	ct := models.CharacterTurn{
		CharacterID:   p.ID,
		CharacterName: p.Name,
	}

	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: characterPrompt(p, group, history, s.cfg.ReplyHistory, turnSoFar)},
		{Role: gateway.RoleUser, Content: userMessage},
	}

	result, err := s.text.Generate(ctx, messages, provider)
	if err != nil {
		s.logger.Warn("reply generation failed",
			zap.String("character", p.Name),
			zap.Error(err))
		ct.Reply = placeholderReply
	} else {
		// Characters return dialogue only; stage directions belong to the
		// narrator. Stripping can consume the whole reply.
		ct.Reply = stripActions(result.Content)
		if ct.Reply == "" {
			ct.Reply = placeholderReply
		}
	}

	if s.rng.Float64() < s.cfg.BracketChance {
		if narration := s.bracketNarration(ctx, p, ct.Reply, history, provider); narration != "" {
			if s.rng.Intn(2) == 0 {
				ct.NarratorBefore = narration
			} else {
				ct.NarratorAfter = narration
			}
		}
	}

	ct.ImagePrompt = s.imagePrompt(ctx, p, ct.Reply, history, provider)
	return ct
}

// bracketNarration produces the optional third-person action fragment around
// a reply. Failures are swallowed, the fragment is decorative.
func (s *Service) bracketNarration(ctx context.Context, p models.Personality, reply string, history []models.Message, provider models.ProviderConfig) string {
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: narrationPrompt(p, history, s.cfg.OpeningHistory)},
		{Role: gateway.RoleUser, Content: reply},
	}

	result, err := s.text.Generate(ctx, messages, provider)
	if err != nil {
		s.logger.Debug("bracket narration skipped",
			zap.String("character", p.Name),
			zap.Error(err))
		return ""
	}
	return stripActions(result.Content)
}

// imagePrompt always returns a non-empty prompt: the generated one, or a
// deterministic fallback synthesized from the character and their reply.
func (s *Service) imagePrompt(ctx context.Context, p models.Personality, reply string, history []models.Message, provider models.ProviderConfig) string {
	messages := []gateway.Message{
		{Role: gateway.RoleSystem, Content: imagePromptRequest(p, history, s.cfg.OpeningHistory)},
		{Role: gateway.RoleUser, Content: reply},
	}

	result, err := s.text.Generate(ctx, messages, provider)
	if err == nil {
		if prompt := stripActions(result.Content); prompt != "" {
			return prompt
		}
	} else {
		s.logger.Debug("image prompt generation failed, using fallback",
			zap.String("character", p.Name),
			zap.Error(err))
	}

	return fallbackImagePrompt(p, reply)
}

// pause inserts the pacing delay between characters, honoring cancellation.
func (s *Service) pause(ctx context.Context) {
	if s.cfg.CharacterPause <= 0 {
		return
	}

	t := time.NewTimer(s.cfg.CharacterPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
