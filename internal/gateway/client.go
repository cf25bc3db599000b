package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aniladanir/retry"
	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMaxAttempts    = 3
	DefaultTimeout        = 30 * time.Second
	DefaultRetryBaseDelay = time.Second
	messageType           = "plain"
)

var tracer = otel.Tracer("github.com/aniladanir/sms-campaign-service/internal/gateway")

// Sender hands a single text message to the SMS provider
type Sender interface {
	Send(ctx context.Context, recipient, body string) domain.Outcome
}

type Config struct {
	URL         string
	APIKey      string
	SenderID    string
	Timeout     time.Duration
	MaxAttempts int
	// RetryBaseDelay scales the jittered exponential backoff between attempts
	RetryBaseDelay time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return cfg
}

// MaxSendDuration is the longest a single Send can take: every attempt runs into
// the timeout and every backoff waits its full cap.
func (cfg Config) MaxSendDuration() time.Duration {
	cfg = cfg.withDefaults()

	total := time.Duration(cfg.MaxAttempts) * cfg.Timeout
	backoff := cfg.RetryBaseDelay
	for i := 1; i < cfg.MaxAttempts; i++ {
		backoff *= 2
		total += min(backoff, retry.DefaultMaxInterval)
	}
	return total
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	SenderID  string `json:"sender_id,omitempty"`
}

type sendResponse struct {
	Status    string          `json:"status"`
	MessageID json.RawMessage `json:"message_id"`
	Cost      json.RawMessage `json:"cost"`
	Message   string          `json:"message"`
}

// runner executes fn until it reports termination or attempts are exhausted
type runner func(ctx context.Context, fn func(attempt int) bool) bool

type Client struct {
	http     *resty.Client
	url      string
	senderID string
	logger   *slog.Logger
	run      runner
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("sms gateway url not configured")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("sms gateway api key not configured")
	}
	cfg = cfg.withDefaults()

	retrier, err := retry.New(
		retry.WithMaxAttemps(cfg.MaxAttempts),
		retry.WithTimeFactor(cfg.RetryBaseDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:     httpClient,
		url:      cfg.URL,
		senderID: cfg.SenderID,
		logger:   logger,
		run: func(ctx context.Context, fn func(attempt int) bool) bool {
			return <-retrier.Retry(ctx, fn, true)
		},
	}, nil
}

// Send posts the message and retries every kind of failure until attempts run out.
// The returned outcome carries the last failure reason when nothing succeeded.
func (c *Client) Send(ctx context.Context, recipient, body string) domain.Outcome {
	ctx, span := tracer.Start(ctx, "gateway.send")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.GatewaySendDuration.Observe(time.Since(start).Seconds())
	}()

	payload := sendRequest{
		Recipient: recipient,
		Type:      messageType,
		Message:   body,
		SenderID:  c.senderID,
	}

	var (
		outcome  domain.Outcome
		attempts int
	)
	succeeded := c.run(ctx, func(attempt int) (terminate bool) {
		attempts++
		attemptLogger := c.logger.With(slog.String("recipient", recipient), slog.Int("attempt", attempt))

		res, err := c.post(ctx, payload)
		if err != nil {
			metrics.GatewayAttemptsTotal.WithLabelValues("failure").Inc()
			attemptLogger.Warn("sms gateway attempt failed", "error", err.Error())
			outcome.Reason = err.Error()
			return false
		}

		metrics.GatewayAttemptsTotal.WithLabelValues("success").Inc()
		attemptLogger.Info("sms accepted by gateway", "gatewayReference", res.GatewayReference)
		outcome = res
		return true
	})

	outcome.Attempts = attempts
	span.SetAttributes(attribute.Int("sms.attempts", attempts))

	if !succeeded || !outcome.Success {
		outcome.Success = false
		if outcome.Reason == "" {
			if err := ctx.Err(); err != nil {
				outcome.Reason = err.Error()
			} else {
				outcome.Reason = "all retry attempts failed"
			}
		}
		metrics.GatewaySendsTotal.WithLabelValues("failure").Inc()
		span.SetStatus(codes.Error, outcome.Reason)
		return outcome
	}

	metrics.GatewaySendsTotal.WithLabelValues("success").Inc()
	return outcome
}

func (c *Client) post(ctx context.Context, payload sendRequest) (domain.Outcome, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("gateway request failed: %w", err)
	}

	raw := bytes.TrimSpace(resp.Body())

	if resp.StatusCode() != http.StatusOK {
		reason := fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode())
		if msg := messageOf(raw); msg != "" {
			reason += ": " + msg
		}
		return domain.Outcome{}, errors.New(reason)
	}

	if len(raw) == 0 {
		return domain.Outcome{}, errors.New("empty response from gateway")
	}

	var result sendResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Outcome{}, fmt.Errorf("invalid JSON response from gateway: %s", truncate(raw, 100))
	}

	if result.Status != "success" {
		if result.Message != "" {
			return domain.Outcome{}, errors.New(result.Message)
		}
		return domain.Outcome{}, errors.New("unknown error occurred")
	}

	ref := scalar(result.MessageID)
	if ref == "" {
		ref = uuid.NewString()
	}

	return domain.Outcome{
		Success:          true,
		GatewayReference: ref,
		Cost:             scalar(result.Cost),
	}, nil
}

// messageOf extracts the provider's message field from an error body, if any
func messageOf(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}

// scalar renders a json string or number as plain text
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
