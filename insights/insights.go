package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"travel-expense/models"
)

// ErrEmptyResponse means the model answered without any text.
var ErrEmptyResponse = errors.New("model returned no text")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini generates text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// The first candidate with content is the answer.
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(sb.String()), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

// BuildPrompt describes a traveller's spending and asks for budgeting advice.
func BuildPrompt(s models.ExpenseSummary) string {
	var sb strings.Builder
	sb.WriteString("You are a travel budget assistant for a trip to Japan. Amounts are in Japanese yen.\n")
	fmt.Fprintf(&sb, "The traveller recorded %d expenses totalling %.2f yen", s.Count, s.Total)
	if s.FirstDate != "" {
		fmt.Fprintf(&sb, " between %s and %s", s.FirstDate, s.LastDate)
	}
	sb.WriteString(".\n\nBy category:\n")
	for _, c := range s.ByCategory {
		fmt.Fprintf(&sb, "- %s: %d expenses, %.2f yen\n", c.Name, c.Count, c.Amount)
	}
	sb.WriteString("\nBy payment method:\n")
	for _, p := range s.ByPaymentMethod {
		fmt.Fprintf(&sb, "- %s: %d expenses, %.2f yen\n", p.Name, p.Count, p.Amount)
	}
	sb.WriteString("\nGive three short, concrete suggestions to spend more wisely on the rest of the trip. Answer in Korean.")
	return sb.String()
}
