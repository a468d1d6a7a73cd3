package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

var ErrGeneration = errors.New("generation_error")

type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneEnthusiastic Tone = "enthusiastic"
	ToneCasual       Tone = "casual"
)

// ParseTone falls back to friendly for empty or unknown values.
func ParseTone(raw string) Tone {
	switch tone := Tone(strings.ToLower(strings.TrimSpace(raw))); tone {
	case ToneProfessional, ToneEnthusiastic, ToneCasual:
		return tone
	default:
		return ToneFriendly
	}
}

type PlaceMetadata struct {
	Name    string
	Address string
}

type Generator interface {
	GenerateReview(ctx context.Context, place PlaceMetadata, tone Tone) (string, error)
}

// ChatModel is the part of an eino chat model used for generation.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

const maxReviewTokens = 200

type ChatGenerator struct {
	model   ChatModel
	timeout time.Duration
	log     *zap.Logger
}

func NewChatGenerator(m ChatModel, timeout time.Duration, log *zap.Logger) *ChatGenerator {
	return &ChatGenerator{model: m, timeout: timeout, log: log.Named("textgen")}
}

func (g *ChatGenerator) GenerateReview(ctx context.Context, place PlaceMetadata, tone Tone) (string, error) {
	if strings.TrimSpace(place.Name) == "" {
		return "", fmt.Errorf("%w: business name is required", ErrGeneration)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msg, err := g.model.Generate(ctx, buildPrompt(place, tone), model.WithMaxTokens(maxReviewTokens))
	if err != nil {
		g.log.Warn("review generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	text := cleanOutput(msg.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return text, nil
}

func buildPrompt(place PlaceMetadata, tone Tone) []*schema.Message {
	system := schema.SystemMessage(
		"You write short Google reviews on behalf of happy customers. " +
			"Return only the review text with no preamble, hashtags or emojis.",
	)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a short, natural-sounding 5-star Google review for a business called '%s'", strings.TrimSpace(place.Name))
	if addr := strings.TrimSpace(place.Address); addr != "" {
		fmt.Fprintf(&b, " located at %s", addr)
	}
	b.WriteString(". Keep it 2-3 sentences, warm and authentic. ")
	fmt.Fprintf(&b, "Use a %s tone. No hashtags or emojis. Return only the review text.", ParseTone(string(tone)))

	return []*schema.Message{system, schema.UserMessage(b.String())}
}

func cleanOutput(raw string) string {
	text := strings.TrimSpace(raw)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(text) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			text = strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
		}
	}
	return text
}

type unconfigured struct{}

func (unconfigured) GenerateReview(ctx context.Context, place PlaceMetadata, tone Tone) (string, error) {
	return "", fmt.Errorf("%w: text generator is not configured", ErrGeneration)
}
