package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openAIProvider also serves OpenAI-compatible endpoints (OpenRouter, Ollama)
// through base_url.
type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	client *openai.Client
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (string, error) {
	if p.client == nil {
		return "", ErrUnavailable
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		if text := resp.Choices[0].Message.Content; strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return renderResponse(resp), nil
}

func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	_ = taskType
	if p.client == nil {
		return nil, ErrUnavailable
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, &EmbeddingShapeError{
			Index:  -1,
			Reason: fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, 0, len(data))
	for i, item := range data {
		if len(item.Embedding) == 0 {
			return nil, &EmbeddingShapeError{Index: i, Reason: "missing embedding"}
		}
		out = append(out, item.Embedding)
	}
	return out, nil
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &openAIProvider{}, nil
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &openAIProvider{client: openai.NewClientWithConfig(clientCfg)}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
