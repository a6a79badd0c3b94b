package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telebio/pkg/logx"
)

const defaultAPIBase = "https://api.telegram.org"

type Config struct {
	Token string

	// BaseURL overrides the Bot API host (tests).
	BaseURL string
}

// Telegram updates the bot account's bio through the Bot API
// (setMyShortDescription).
type Telegram struct {
	cfg  Config
	http *http.Client
	log  logx.Logger

	// sleep is swapped in tests so the retry wait doesn't use wall time.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		cfg:   cfg,
		http:  &http.Client{Timeout: 15 * time.Second},
		log:   log,
		sleep: sleepCtx,
	}, nil
}

// Apply sets the account bio. A rate-limit response is waited out once and
// the call retried a single time; any further failure is returned as-is.
func (t *Telegram) Apply(ctx context.Context, text string) error {
	err := t.apply(ctx, text)
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		if err == nil {
			t.log.Info("bio applied", logx.String("text", text))
		}
		return err
	}

	t.log.Warn("rate limited, waiting before retry", logx.Duration("retry_after", rl.RetryAfter))
	if serr := t.sleep(ctx, rl.RetryAfter); serr != nil {
		return serr
	}
	if err := t.apply(ctx, text); err != nil {
		return fmt.Errorf("retry after rate limit: %w", err)
	}
	t.log.Info("bio applied after rate-limit wait", logx.String("text", text))
	return nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (t *Telegram) apply(ctx context.Context, text string) error {
	payload, err := json.Marshal(struct {
		ShortDescription string `json:"short_description"`
	}{ShortDescription: text})
	if err != nil {
		return err
	}

	base := t.cfg.BaseURL
	if base == "" {
		base = defaultAPIBase
	}
	url := base + "/bot" + strings.TrimSpace(t.cfg.Token) + "/setMyShortDescription"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("setMyShortDescription: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode == http.StatusTooManyRequests || out.ErrorCode == http.StatusTooManyRequests {
		wait := time.Duration(out.Parameters.RetryAfter) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		return &RateLimitedError{RetryAfter: wait}
	}
	if resp.StatusCode/100 != 2 || !out.OK {
		if out.Description != "" {
			return fmt.Errorf("setMyShortDescription failed: %s (code=%d http=%d)",
				out.Description, out.ErrorCode, resp.StatusCode)
		}
		return fmt.Errorf("setMyShortDescription failed: http=%d", resp.StatusCode)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
