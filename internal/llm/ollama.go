package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// OllamaProvider talks to a local Ollama server
type OllamaProvider struct {
	baseURL  string
	endpoint jsonEndpoint
	config   Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

func ollamaErrorText(body []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	return env.Error
}

// NewOllamaProvider creates an Ollama provider, defaulting to localhost:11434
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		baseURL: baseURL,
		endpoint: jsonEndpoint{
			client:    newHTTPClient(config),
			url:       baseURL + "/api/generate",
			errorText: ollamaErrorText,
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable lists installed models to see whether the server is up
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	if err := p.endpoint.get(ctx, p.baseURL+"/api/tags"); err != nil {
		log.Printf("llm: ollama availability check failed: %v", err)
		return false
	}
	return true
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := p.config.model(req, "")
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g. llama3.1:8b)")
	}

	in := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: float64(p.config.temperature(req)),
			NumPredict:  p.config.maxTokens(req),
		},
	}

	var out ollamaResponse
	if err := p.endpoint.post(ctx, in, &out); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	text := strings.TrimSpace(out.Response)

	// some models report no counts; estimate at four characters per token
	tokens := out.PromptEvalCount + out.EvalCount
	if tokens == 0 {
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &CompletionResponse{
		Text:       text,
		Model:      out.Model,
		TokensUsed: tokens,
	}, nil
}
