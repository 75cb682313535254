package ai

import (
	"context"
	"encoding/base64"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	appcfg "github.com/medvault/portal/internal/config"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicModel calls the Messages API. SDK retries are disabled; RetryingModel owns retries.
type AnthropicModel struct {
	client anthropicclient.Client
	model  string
}

func NewAnthropicModel(provider appcfg.AIProvider) *AnthropicModel {
	modelID := strings.TrimSpace(provider.DefaultModel)
	if modelID == "" {
		modelID = defaultAnthropicModel
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(strings.TrimSpace(provider.APIKey)),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(provider.Endpoint); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}

	return &AnthropicModel{client: anthropicclient.NewClient(opts...), model: modelID}
}

func (m *AnthropicModel) Generate(ctx context.Context, req Request) (string, error) {
	blocks := make([]anthropicclient.ContentBlockParamUnion, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.IsBlob() {
			blocks = append(blocks, anthropicclient.NewImageBlockBase64(part.MIMEType, base64.StdEncoding.EncodeToString(part.Data)))
			continue
		}
		if part.Text != "" {
			blocks = append(blocks, anthropicclient.NewTextBlock(part.Text))
		}
	}

	params := anthropicclient.MessageNewParams{
		MaxTokens: int64(maxTokens(req)),
		Model:     anthropicclient.Model(m.model),
		Messages:  []anthropicclient.MessageParam{anthropicclient.NewUserMessage(blocks...)},
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropicclient.TextBlockParam{{Text: req.System}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			full.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(full.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
