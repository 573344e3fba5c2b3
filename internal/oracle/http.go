package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
)

const systemPrompt = `You evaluate the compatibility of two matrimonial profiles.
Reply with a single JSON object with numeric fields overall, location, education, religious,
family, lifestyle and personality (each 0-100), a string field explanation, and string array
fields matchReasons and potentialConcerns. Do not include any other text.`

type HTTPConfig struct {
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	MaxRetries int
}

// HTTPOracle calls an OpenAI-compatible chat completions endpoint.
type HTTPOracle struct {
	cfg        HTTPConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

func NewHTTPOracle(cfg HTTPConfig, log *logger.Logger) *HTTPOracle {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &HTTPOracle{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		log:        log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model,omitempty"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("oracle http %d: %s", e.StatusCode, e.Body)
}

func (o *HTTPOracle) Evaluate(ctx context.Context, a, b Summary, prefs *Preferences) (*Evaluation, error) {
	start := time.Now()
	defer func() { requestDuration.WithLabelValues("http").Observe(time.Since(start).Seconds()) }()

	payload, err := json.Marshal(struct {
		ProfileA    Summary      `json:"profileA"`
		ProfileB    Summary      `json:"profileB"`
		Preferences *Preferences `json:"preferences,omitempty"`
	}{a, b, prefs})
	if err != nil {
		return nil, fmt.Errorf("encode summaries: %w", err)
	}

	req := chatRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var resp chatResponse
	if err := o.doWithRetry(ctx, req, &resp); err != nil {
		requestsTotal.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	eval, err := parseEvaluation(resp)
	if err != nil {
		requestsTotal.WithLabelValues("http", "bad_response").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues("http", "success").Inc()
	return eval, nil
}

func parseEvaluation(resp chatResponse) (*Evaluation, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	// some models wrap JSON in a code fence
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var eval Evaluation
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &eval); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	eval.normalize()
	return &eval, nil
}

func (o *HTTPOracle) doWithRetry(ctx context.Context, body chatRequest, out *chatResponse) error {
	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		err := o.doOnce(ctx, body, out)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= o.cfg.MaxRetries {
			return err
		}

		o.log.Warn("Oracle request retrying",
			"attempt", attempt+1,
			"max_retries", o.cfg.MaxRetries,
			"sleep", backoff.String(),
			"error", err.Error(),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (o *HTTPOracle) doOnce(ctx context.Context, body chatRequest, out *chatResponse) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	// context errors are final, transport errors are worth another try
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrBadResponse)
}
