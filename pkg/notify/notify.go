// Package notify defines the outbound notification boundary. The engine
// decides whom to notify and hands over a contact channel plus a
// pre-rendered message; template rendering and delivery mechanics live
// behind this interface.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is one outbound notification.
type Message struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	SenderID  string `json:"sender_id,omitempty"`
}

// Sender dispatches a single notification. Implementations must treat each
// call as one attempt; retry policy belongs to the caller.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMSGateway posts messages to an HTTP SMS provider.
type SMSGateway struct {
	url      string
	senderID string
	client   *http.Client
}

// NewSMSGateway constructs a gateway sender. timeout bounds each attempt.
func NewSMSGateway(url, senderID string, timeout time.Duration) *SMSGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSGateway{
		url:      url,
		senderID: senderID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send posts the message as JSON. Any non-2xx response is a failure.
func (g *SMSGateway) Send(ctx context.Context, msg Message) error {
	if g.url == "" {
		return fmt.Errorf("sms gateway url not configured")
	}
	if msg.SenderID == "" {
		msg.SenderID = g.senderID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log instead of delivering them.
// Used in development when no gateway is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a log-backed sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification (log sender)",
		zap.String("recipient", msg.Recipient),
		zap.String("body", msg.Body),
	)
	return nil
}
