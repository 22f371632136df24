package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/ragtrial/internal/resilience"
)

// HTTPEvaluator starts trials on an engine service over HTTP.
type HTTPEvaluator struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewHTTPEvaluator creates a new HTTP-based evaluator.
func NewHTTPEvaluator(cfg Config) *HTTPEvaluator {
	cfg = cfg.WithDefaults()
	return &HTTPEvaluator{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		timeout:  cfg.Timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name implements Evaluator.
func (e *HTTPEvaluator) Name() string { return KindHTTP }

// Close implements Evaluator.
func (e *HTTPEvaluator) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

type trialRequest struct {
	ConfigPath     string `json:"config_path"`
	QADataPath     string `json:"qa_data_path"`
	CorpusDataPath string `json:"corpus_data_path"`
	ProjectDir     string `json:"project_dir"`
	Device         string `json:"device,omitempty"`
}

type trialResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// StartTrial implements Evaluator.
func (e *HTTPEvaluator) StartTrial(ctx context.Context, t Trial) error {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	jsonData, err := json.Marshal(trialRequest{
		ConfigPath:     t.ConfigPath,
		QADataPath:     t.QAPath,
		CorpusDataPath: t.CorpusPath,
		ProjectDir:     t.ProjectDir,
		Device:         t.Device,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/trials", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.Credential)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("start trial: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		return resilience.RateLimited(
			fmt.Errorf("http 429: %s", strings.TrimSpace(string(body))),
			ParseRetryAfter(retryAfter, time.Now()),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.DetectThrottlePattern(string(body)) {
			return resilience.RateLimited(err, 0)
		}
		return err
	}

	var tr trialResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &tr); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	if tr.Error != "" {
		err := fmt.Errorf("engine error: %s", tr.Error)
		if resilience.DetectThrottlePattern(tr.Error) {
			return resilience.RateLimited(err, 0)
		}
		return err
	}
	return nil
}

// ParseRetryAfter decodes a Retry-After header given as seconds or an HTTP date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
