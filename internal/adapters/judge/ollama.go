package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the Ollama backend.
const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
	// ollamaClientTimeout is a backstop only; per-attempt deadlines come
	// from the caller's context.
	ollamaClientTimeout = 5 * time.Minute
)

// OllamaJudge evaluates comparisons through an Ollama server's native
// generate API.
type OllamaJudge struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
	numPredict  int
}

// OllamaOption configures the Ollama judge.
type OllamaOption func(*OllamaJudge)

// WithOllamaBaseURL sets the server address.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(j *OllamaJudge) {
		if url != "" {
			j.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithOllamaModel sets the judge model.
func WithOllamaModel(model string) OllamaOption {
	return func(j *OllamaJudge) {
		if model != "" {
			j.model = model
		}
	}
}

// WithOllamaTemperature sets the sampling temperature.
func WithOllamaTemperature(t float64) OllamaOption {
	return func(j *OllamaJudge) {
		if t >= 0 {
			j.temperature = t
		}
	}
}

// WithOllamaNumPredict caps the reply length in tokens.
func WithOllamaNumPredict(n int) OllamaOption {
	return func(j *OllamaJudge) {
		if n > 0 {
			j.numPredict = n
		}
	}
}

// NewOllamaJudge creates a judge backed by a local Ollama server.
func NewOllamaJudge(opts ...OllamaOption) *OllamaJudge {
	j := &OllamaJudge{
		client:      &http.Client{Timeout: ollamaClientTimeout},
		baseURL:     defaultOllamaBaseURL,
		model:       defaultOllamaModel,
		temperature: defaultTemperature,
		numPredict:  defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(j)
	}

	return j
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Compare implements Judge.
func (j *OllamaJudge) Compare(ctx context.Context, c Comparison) (Decision, error) {
	payload := ollamaGenerateRequest{
		Model:  j.model,
		Prompt: BuildPrompt(c),
		System: systemPrompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": j.temperature,
			"num_predict": j.numPredict,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}

		return Decision{}, fmt.Errorf("%w: generate call: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read generate response: %v", ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("%w: generate returned %d: %s", ErrTransient, resp.StatusCode, clip(string(respBody), 200))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Decision{}, fmt.Errorf("%w: decode generate response: %v", ErrTransient, err)
	}

	return ParseDecision(out.Response)
}
