package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/ports"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator implements ports.TextGenerator on the Gemini API.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ ports.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator. baseURL is only set in tests.
func NewGeminiGenerator(ctx context.Context, cfg config.TextGenerationConfig, baseURL string) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("text generator: %w", config.ErrMissingCredentials)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model, timeout: cfg.Timeout}, nil
}

// Generate sends a single-turn prompt and returns the response text.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}
	if opts.RelaxSafety {
		genCfg.SafetySettings = relaxedSafety()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini generate: empty response")
	}
	return text, nil
}

func relaxedSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
