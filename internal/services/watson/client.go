package watson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sttbatch/internal/logging"
	"sttbatch/internal/services"
	"sttbatch/internal/transcription"
)

const (
	component             = "watson"
	recognitionsPath      = "/v1/recognitions"
	modelsPath            = "/v1/models"
	apiKeyUser            = "apikey"
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	maxErrorBodyBytes     = 512
)

// Config captures the runtime settings required to talk to the recognition API.
type Config struct {
	EndpointURL       string
	APIKey            string
	Model             string
	ContentType       string
	TimeoutSeconds    int
	RequestsPerSecond float64
	// SubmitRetries is the number of extra submit attempts after a retryable failure.
	SubmitRetries int
}

// Client wraps the asynchronous recognitions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

var _ transcription.Client = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the submit retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLimiter replaces the request rate limiter; nil disables limiting.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// NewClient constructs a recognitions client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := defaultRetryAttempts
	if cfg.SubmitRetries >= 0 {
		attempts = cfg.SubmitRetries + 1
	}
	client := &Client{
		cfg: Config{
			EndpointURL:       strings.TrimRight(strings.TrimSpace(cfg.EndpointURL), "/"),
			APIKey:            strings.TrimSpace(cfg.APIKey),
			Model:             strings.TrimSpace(cfg.Model),
			ContentType:       strings.TrimSpace(cfg.ContentType),
			TimeoutSeconds:    cfg.TimeoutSeconds,
			RequestsPerSecond: cfg.RequestsPerSecond,
			SubmitRetries:     cfg.SubmitRetries,
		},
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(nil, component),
		retryMaxAttempts: attempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	if cfg.RequestsPerSecond > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type recognitionJob struct {
	ID       string              `json:"id"`
	Status   string              `json:"status"`
	Results  []recognitionResult `json:"results"`
	Warnings []string            `json:"warnings"`
}

type recognitionResult struct {
	ResultIndex int `json:"result_index"`
	Results     []struct {
		Final        bool `json:"final"`
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Submit uploads one audio file and returns the job id issued by the service.
// Each attempt gets its own request timeout. Timed out attempts are retried
// with backoff like throttling and server errors.
func (c *Client) Submit(ctx context.Context, sourceFile string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", services.Wrap(services.ErrSubmission, component, "submit", sourceFile+": empty audio", nil)
	}
	endpoint, err := c.recognitionsURL("")
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, component, "submit", "build url", err)
	}
	contentType := ContentTypeFor(sourceFile, c.cfg.ContentType)

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		job, err := c.submitOnce(ctx, endpoint, contentType, audio)
		if err == nil {
			c.logger.Debug("recognition job created",
				logging.String(logging.FieldSourceFile, sourceFile),
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldState, job.Status),
				logging.Int(logging.FieldAttempt, attempt),
			)
			return job.ID, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		c.logger.Debug("retrying recognition submit",
			logging.String(logging.FieldSourceFile, sourceFile),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return "", services.Wrap(services.ErrSubmission, component, "submit", sourceFile, lastErr)
}

func (c *Client) submitOnce(ctx context.Context, endpoint, contentType string, audio []byte) (recognitionJob, error) {
	var job recognitionJob
	if err := c.wait(ctx); err != nil {
		return job, err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeoutDuration())
	defer cancel()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return job, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(audio))
	body, err := c.do(req)
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(job.ID) == "" {
		return job, errors.New("response did not include a job id")
	}
	job.ID = strings.TrimSpace(job.ID)
	return job, nil
}

// FetchStatus reports the current state of a job. A completed job carries its
// assembled transcript. Unknown ids yield an error matching services.ErrNotFound.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (transcription.Status, error) {
	var empty transcription.Status
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", "job id required", nil)
	}
	endpoint, err := c.recognitionsURL(jobID)
	if err != nil {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", "build url", err)
	}

	if err := c.wait(ctx); err != nil {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", jobID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", jobID, err)
	}
	body, err := c.do(req)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return empty, services.NotFound(component, "fetch status", jobID, err)
		}
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", jobID, err)
	}

	var job recognitionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", jobID, fmt.Errorf("decode response: %w", err))
	}
	state, err := transcription.ParseState(job.Status)
	if err != nil {
		return empty, services.Wrap(services.ErrQuery, component, "fetch status", jobID, err)
	}
	if state != transcription.StateCompleted {
		return transcription.Status{State: state}, nil
	}
	return transcription.Completed(assembleTranscript(job.Results)), nil
}

// HealthCheck fetches the configured model's description. It confirms the
// endpoint is reachable, the API key is accepted and the model exists.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.EndpointURL == "" {
		return services.Wrap(services.ErrConfiguration, component, "health check", "endpoint url not configured", nil)
	}
	if c.cfg.Model == "" {
		return services.Wrap(services.ErrConfiguration, component, "health check", "model not configured", nil)
	}
	endpoint, err := url.Parse(c.cfg.EndpointURL)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "health check", "parse endpoint", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.JoinPath(modelsPath, c.cfg.Model).String(), nil)
	if err != nil {
		return services.Wrap(services.ErrQuery, component, "health check", c.cfg.Model, err)
	}
	if _, err := c.do(req); err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return services.NotFound(component, "health check", "model "+c.cfg.Model, err)
		}
		return services.Wrap(services.ErrQuery, component, "health check", c.cfg.Model, err)
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0 when err did not
// come from a service response.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// assembleTranscript joins the best alternative of every result segment.
func assembleTranscript(results []recognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		for _, segment := range result.Results {
			if len(segment.Alternatives) == 0 {
				continue
			}
			if text := strings.TrimSpace(segment.Alternatives[0].Transcript); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// recognitionsURL returns the collection URL (with the model query) when
// jobID is empty, or the URL of a single job otherwise.
func (c *Client) recognitionsURL(jobID string) (string, error) {
	if c.cfg.EndpointURL == "" {
		return "", errors.New("endpoint url not configured")
	}
	endpoint, err := url.Parse(c.cfg.EndpointURL)
	if err != nil {
		return "", err
	}
	if jobID != "" {
		return endpoint.JoinPath(recognitionsPath, jobID).String(), nil
	}
	endpoint = endpoint.JoinPath(recognitionsPath)
	query := endpoint.Query()
	if c.cfg.Model != "" {
		query.Set("model", c.cfg.Model)
	}
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(apiKeyUser, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: http error (timeout=%s): %w", services.ErrTimeout, c.timeoutDuration(), err)
		}
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: snippet, RetryAfter: retryAfter}
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

// SubmitBudget is the longest one Submit call can take when every attempt
// runs to its request timeout and every retry waits the capped backoff.
func (c *Client) SubmitBudget() time.Duration {
	attempts := c.retryAttempts()
	return time.Duration(attempts)*c.timeoutDuration() + time.Duration(attempts-1)*c.maxRetryDelay()
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	// ctx is the caller's context. A deadline error while it is still live
	// came from the per-attempt request timeout and is retried.
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	if isTimeout(err) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func isTimeout(err error) bool {
	if services.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) maxRetryDelay() time.Duration {
	if c.retryMaxDelay <= 0 {
		return defaultRetryMaxDelay
	}
	return c.retryMaxDelay
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	maxDelay := c.maxRetryDelay()
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := c.maxRetryDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
