// Package executors provides the HTTP clients for the external executor
// services that perform step work: the agent system, the swarm controller,
// and the SPARC manager.
package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/eduflow-ai/eduflow/internal/core"
	"github.com/eduflow-ai/eduflow/internal/logging"
)

// Options configures one HTTP executor client.
type Options struct {
	Name               string
	BaseURL            string
	RequestTimeout     time.Duration
	BreakerMaxFailures uint32
	BreakerCooloff     time.Duration
}

// HTTPExecutor calls an executor service over HTTP. A circuit breaker
// wraps every Execute call so a down service fails fast instead of
// burning a full timeout per attempt.
type HTTPExecutor struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// executeRequest is the wire payload sent to an executor service.
type executeRequest struct {
	StepID     string                 `json:"step_id"`
	StepName   string                 `json:"step_name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// New creates an HTTP executor client.
func New(opts Options, logger *logging.Logger) *HTTPExecutor {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerCooloff <= 0 {
		opts.BreakerCooloff = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithExecutor(opts.Name)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.BreakerCooloff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"from", from.String(), "to", to.String())
		},
	})

	return &HTTPExecutor{
		name:    opts.Name,
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: opts.RequestTimeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Name returns the executor registry key.
func (e *HTTPExecutor) Name() string {
	return e.name
}

// Ping checks the executor service's health endpoint.
func (e *HTTPExecutor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", e.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s health check returned %d", e.name, resp.StatusCode)
	}
	return nil
}

// Execute posts the step to the executor service and returns its result
// payload. The payload is opaque to the coordinator.
func (e *HTTPExecutor) Execute(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.post(ctx, step)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.ErrExecution("EXECUTOR_UNAVAILABLE",
				fmt.Sprintf("executor %s circuit open", e.name)).WithCause(err)
		}
		return nil, err
	}
	return out.(map[string]interface{}), nil
}

func (e *HTTPExecutor) post(ctx context.Context, step *core.Step) (map[string]interface{}, error) {
	body, err := json.Marshal(executeRequest{
		StepID:     string(step.ID),
		StepName:   step.Name,
		Parameters: step.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding step %s: %w", step.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, core.ErrExecution("EXECUTOR_REQUEST_FAILED",
			fmt.Sprintf("calling executor %s", e.name)).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrExecution("EXECUTOR_RESPONSE_UNREADABLE",
			fmt.Sprintf("reading response from %s", e.name)).WithCause(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors will not succeed on retry.
		return nil, core.ErrValidation("EXECUTOR_REJECTED_STEP",
			fmt.Sprintf("executor %s rejected step: %d %s", e.name, resp.StatusCode, truncate(data)))
	default:
		return nil, core.ErrExecution("EXECUTOR_SERVER_ERROR",
			fmt.Sprintf("executor %s returned %d", e.name, resp.StatusCode))
	}

	result := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, core.ErrExecution("EXECUTOR_RESPONSE_INVALID",
				fmt.Sprintf("decoding response from %s", e.name)).WithCause(err)
		}
	}
	return result, nil
}

func truncate(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
