package bio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"telebio/pkg/logx"
)

const (
	yandexCompletionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	defaultYandexModel  = "yandexgpt-lite/latest"

	// maxFewShotExamples caps prompt size regardless of the examples file.
	maxFewShotExamples = 20
)

const llmSystemPrompt = "Role: Ты — генератор случайных абсурдных фактов и сюрреалистичного юмора.\n" +
	"Task: Придумай странную, смешную фразу для био.\n" +
	"Constraints:\n" +
	"1. Длина: до 60 символов.\n" +
	"2. Тон: хаотичный, непредсказуемый, абсурдный.\n" +
	"3. Сочетай несочетаемое (еду и технологии, животных и политику, космос и быт).\n" +
	"4. Выводи ТОЛЬКО текст."

const llmUserTurn = "Придумай фразу для био."

// LLMConfig configures the YandexGPT provider.
type LLMConfig struct {
	APIKey       string
	FolderID     string
	Model        string  // defaults to yandexgpt-lite/latest
	Temperature  float64 // must be within [0, 1]
	ExamplesFile string  // optional few-shot examples (JSON array of strings)

	// BaseURL overrides the completion endpoint (tests).
	BaseURL string
}

// LLMProvider generates bio text through the YandexGPT Foundation Models
// completion API. It is stateless between calls.
type LLMProvider struct {
	cfg      LLMConfig
	modelURI string
	examples []string
	http     *http.Client
	log      logx.Logger
}

func NewLLMProvider(cfg LLMConfig, log logx.Logger) (*LLMProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("yandex api key is required for the llm provider")
	}
	if strings.TrimSpace(cfg.FolderID) == "" {
		return nil, errors.New("yandex folder id is required for the llm provider")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be within [0, 1], got %v", cfg.Temperature)
	}
	model := cfg.Model
	if model == "" {
		model = defaultYandexModel
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	examples, err := loadExamples(cfg.ExamplesFile, log)
	if err != nil {
		return nil, err
	}

	p := &LLMProvider{
		cfg:      cfg,
		modelURI: fmt.Sprintf("gpt://%s/%s", cfg.FolderID, model),
		examples: examples,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log,
	}
	log.Info("llm provider ready", logx.String("model", p.modelURI), logx.Int("examples", len(examples)))
	return p, nil
}

type llmMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type llmRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []llmMessage `json:"messages"`
}

type llmResponse struct {
	Result struct {
		Alternatives []struct {
			Message llmMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

func (p *LLMProvider) Next(ctx context.Context) (string, error) {
	body, err := json.Marshal(p.buildRequest())
	if err != nil {
		return "", &ProviderError{Kind: KindLLM, Err: err}
	}

	url := p.cfg.BaseURL
	if url == "" {
		url = yandexCompletionURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Kind: KindLLM, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+p.cfg.APIKey)
	req.Header.Set("x-folder-id", p.cfg.FolderID)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", &ProviderError{Kind: KindLLM, Err: fmt.Errorf("completion request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Don't echo response bodies; they may carry request details.
		return "", &ProviderError{Kind: KindLLM, Err: fmt.Errorf("completion request failed with status %d", resp.StatusCode)}
	}

	var out llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Kind: KindLLM, Err: fmt.Errorf("decode completion response: %w", err)}
	}

	text, err := p.extractText(out)
	if err != nil {
		return "", &ProviderError{Kind: KindLLM, Err: err}
	}
	p.log.Info("bio generated", logx.String("text", text))
	return text, nil
}

func (p *LLMProvider) buildRequest() llmRequest {
	msgs := make([]llmMessage, 0, 2+2*len(p.examples))
	msgs = append(msgs, llmMessage{Role: "system", Text: llmSystemPrompt})
	// Few-shot: each example becomes a user request / assistant reply pair.
	for _, ex := range p.examples {
		msgs = append(msgs,
			llmMessage{Role: "user", Text: llmUserTurn},
			llmMessage{Role: "assistant", Text: ex})
	}
	msgs = append(msgs, llmMessage{Role: "user", Text: llmUserTurn})

	var r llmRequest
	r.ModelURI = p.modelURI
	r.CompletionOptions.Stream = false
	r.CompletionOptions.Temperature = p.cfg.Temperature
	r.CompletionOptions.MaxTokens = 100
	r.Messages = msgs
	return r
}

func (p *LLMProvider) extractText(out llmResponse) (string, error) {
	if len(out.Result.Alternatives) == 0 {
		return "", errors.New("no alternatives in completion response")
	}
	text := strings.TrimSpace(out.Result.Alternatives[0].Message.Text)
	if text == "" {
		return "", errors.New("completion returned empty text")
	}
	if cut, truncated := Truncate(text); truncated {
		p.log.Warn("generated bio too long, truncating", logx.Int("len", len([]rune(text))), logx.Int("limit", MaxLen))
		text = cut
	}
	return text, nil
}

func loadExamples(path string, log logx.Logger) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("examples file not found, proceeding without examples", logx.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("read examples file: %w", err)
	}
	var examples []string
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("examples file %s: expected a JSON array of strings: %w", path, err)
	}
	if len(examples) > maxFewShotExamples {
		log.Warn("examples file too large, using a prefix",
			logx.Int("count", len(examples)), logx.Int("limit", maxFewShotExamples))
		examples = examples[:maxFewShotExamples]
	}
	return examples, nil
}
