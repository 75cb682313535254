package ai

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/medvault/portal/internal/config"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls generateContent on the Gemini API backend.
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, provider appcfg.AIProvider) (*GeminiModel, error) {
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(provider.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint := strings.TrimSpace(provider.Endpoint); endpoint != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(endpoint, "/") + "/"
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	if modelID == "" {
		modelID = defaultGeminiModel
	}
	return &GeminiModel{client: client, model: modelID}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.IsBlob() {
			parts = append(parts, genai.NewPartFromBytes(part.Data, part.MIMEType))
			continue
		}
		if part.Text != "" {
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
	}

	config := &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens(req))}
	if strings.TrimSpace(req.System) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
