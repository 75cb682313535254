package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	appcfg "github.com/medvault/portal/internal/config"
)

const (
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultMaxOutputTokens = 1024
)

// NewModel builds the model client for the configured summary provider.
// It fails with ErrNoProvider or ErrMissingCredential when nothing usable is configured.
func NewModel(ctx context.Context, cfg appcfg.AIConfig) (Model, error) {
	provider := selectAIProvider(cfg, cfg.SummaryProvider, cfg.SummaryModel)
	if provider == nil {
		return nil, ErrNoProvider
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, fmt.Errorf("provider %q: %w", provider.ID, ErrMissingCredential)
	}

	switch appcfg.NormalizeProviderType(provider.Type) {
	case appcfg.ProviderAnthropic:
		return NewAnthropicModel(*provider), nil
	case appcfg.ProviderGemini:
		return NewGeminiModel(ctx, *provider)
	case appcfg.ProviderOpenAICompatible:
		return NewOpenAICompatibleModel(*provider, nil), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider type %q", provider.Type)
	}
}

func selectAIProvider(cfg appcfg.AIConfig, providerID, overrideModel string) *appcfg.AIProvider {
	providerID = strings.TrimSpace(providerID)
	overrideModel = strings.TrimSpace(overrideModel)

	pick := func(provider appcfg.AIProvider) *appcfg.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range cfg.Providers {
			if provider.Enabled && strings.TrimSpace(provider.ID) == providerID {
				return pick(provider)
			}
		}
	}

	for _, provider := range cfg.Providers {
		if provider.Enabled {
			return pick(provider)
		}
	}
	return nil
}

// Unavailable is a Model that always fails with the configuration error it was built from.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(context.Context, Request) (string, error) {
	if u.Err == nil {
		return "", ErrNoProvider
	}
	return "", u.Err
}

// OpenAICompatibleModel talks to any /v1/chat/completions endpoint.
type OpenAICompatibleModel struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewOpenAICompatibleModel(provider appcfg.AIProvider, client *http.Client) *OpenAICompatibleModel {
	if client == nil {
		client = &http.Client{}
	}
	model := strings.TrimSpace(provider.DefaultModel)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAICompatibleModel{
		endpoint: normalizeOpenAICompatibleEndpoint(provider.Endpoint),
		apiKey:   strings.TrimSpace(provider.APIKey),
		model:    model,
		client:   client,
	}
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func (m *OpenAICompatibleModel) Generate(ctx context.Context, req Request) (string, error) {
	if m.apiKey == "" {
		return "", ErrMissingCredential
	}

	content := make([]chatContentPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.IsBlob() {
			content = append(content, chatContentPart{
				Type:     "image_url",
				ImageURL: &chatImageURL{URL: "data:" + part.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.Data)},
			})
			continue
		}
		content = append(content, chatContentPart{Type: "text", Text: part.Text})
	}

	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: content})

	body, err := json.Marshal(map[string]interface{}{
		"model":      m.model,
		"messages":   messages,
		"max_tokens": maxTokens(req),
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &StatusError{Provider: "openai-compatible", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", fmt.Errorf("openai-compatible error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")
	}

	parsed.Path = strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/v1")
	return strings.TrimRight(parsed.String(), "/")
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxOutputTokens
}
