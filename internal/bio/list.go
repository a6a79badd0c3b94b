package bio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"telebio/pkg/logx"
)

// ListProvider cycles through phrases loaded from a JSON file (an array of
// strings), sequentially with wraparound.
type ListProvider struct {
	log logx.Logger

	mu      sync.Mutex
	phrases []string
	idx     int
}

func NewListProvider(path string, log logx.Logger) (*ListProvider, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	phrases, err := loadPhrases(path, log)
	if err != nil {
		return nil, err
	}
	log.Info("phrases loaded", logx.Int("count", len(phrases)), logx.String("path", path))
	return &ListProvider{log: log, phrases: phrases}, nil
}

func (p *ListProvider) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.phrases) == 0 {
		return "", &ProviderError{Kind: KindList, Err: errors.New("phrase list is empty")}
	}
	phrase := p.phrases[p.idx]
	p.idx = (p.idx + 1) % len(p.phrases)
	return phrase, nil
}

func loadPhrases(path string, log logx.Logger) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrases file: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("phrases file %s: expected a JSON array of strings: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("phrases file %s is empty", path)
	}
	out := make([]string, 0, len(raw))
	for _, phrase := range raw {
		if cut, truncated := Truncate(phrase); truncated {
			rs := []rune(cut)
			log.Warn("phrase truncated", logx.Int("limit", MaxLen), logx.String("prefix", string(rs[:min(len(rs), 30)])))
			phrase = cut
		}
		out = append(out, phrase)
	}
	return out, nil
}
