package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.0-flash-001"

var ErrEmptyResponse = errors.New("empty response from Gemini")

type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: client.GenerativeModel(modelName)}, nil
}

func (c *Client) Close() error { return c.client.Close() }

// Generate sends one prompt and joins the text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// GenerateDescription drafts a short listing description.
func (c *Client) GenerateDescription(ctx context.Context, title, category string) (string, error) {
	return c.Generate(ctx, DescriptionPrompt(title, category))
}

// AnalyzeOffer returns a short risk note for a one-line offer summary.
func (c *Client) AnalyzeOffer(ctx context.Context, summary string) (string, error) {
	return c.Generate(ctx, AnalysisPrompt(summary))
}

func DescriptionPrompt(title, category string) string {
	return fmt.Sprintf(`Write a professional, trustworthy and concise description for a P2P exchange offer.
Title: %s
Category: %s
Be clear about what is offered, stay under 50 words and answer in Spanish.`, title, category)
}

func AnalysisPrompt(summary string) string {
	return fmt.Sprintf(`Act as an expert in P2P trade safety. Briefly analyse this offer:
"%s"
Give three points: estimated risk level (Low/Medium/High), one safety recommendation for the exchange, and one question the buyer should ask. Answer in simple Markdown, in Spanish.`, summary)
}
