// Package agent is the HTTP client for the remote counterargument service.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ContraChat/internal/stream"
)

// streamContentType classifies a response as the line-oriented event stream.
const streamContentType = "text/event-stream"

// Client calls the counterargument agent endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Client {
	return &Client{
		endpoint: endpoint,
		// No client-side timeout: a hung request stays outstanding until
		// the caller cancels the context or the transport errors.
		httpClient: &http.Client{},
		logger:     logger,
		tracer:     tracer,
		meter:      meter,
	}
}

// StreamHandlers receives streaming output as it arrives.
type StreamHandlers struct {
	// OnStarted fires once, on the first non-empty delta.
	OnStarted func()
	// OnDelta receives each incremental fragment.
	OnDelta func(delta string)
}

// Converse sends one user message and returns the exchange result. The
// response is classified by content type: an event stream is decoded
// incrementally through h, anything else is parsed as a single JSON body.
func (c *Client) Converse(ctx context.Context, userText, conversationID string, h StreamHandlers) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "agent_request")
	defer span.End()

	start := time.Now()

	body, err := json.Marshal(Request{
		Message:        userText,
		ConversationID: conversationID,
		Stream:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", streamContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.errorFromResponse(resp)
	}

	defer c.recordDuration(ctx, start)

	if isEventStream(resp.Header.Get("Content-Type")) {
		return c.consumeStream(ctx, resp.Body, h)
	}
	return c.parseJSON(resp.Body)
}

// consumeStream decodes the event stream, forwarding deltas to h.
func (c *Client) consumeStream(ctx context.Context, body io.Reader, h StreamHandlers) (*Result, error) {
	dec := stream.NewDecoder(body)
	err := dec.Process(ctx, stream.Callbacks{
		OnStarted: h.OnStarted,
		OnDelta:   h.OnDelta,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Streamed: true, DeltaCount: dec.DeltaCount()}, nil
}

// parseJSON handles the non-streaming fallback body.
func (c *Client) parseJSON(body io.Reader) (*Result, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &Result{
		Message:   parsed.Message,
		Arguments: parsed.Arguments,
	}, nil
}

// errorFromResponse builds the failure for a non-2xx status, preferring the
// body's error field over the generic message.
func (c *Client) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var parsed errorBody
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("%s", parsed.Error)
	}
	return fmt.Errorf("Server error: %d", resp.StatusCode)
}

// recordDuration records the request duration histogram.
func (c *Client) recordDuration(ctx context.Context, start time.Time) {
	histogram, err := c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
		return
	}
	histogram.Record(ctx, float64(time.Since(start).Milliseconds()))
}

// isEventStream reports whether the content type denotes the streaming path.
func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == streamContentType
}
