package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Notification describes one observed state transition.
type Notification struct {
	RuleID   string `json:"rule_id"`
	EntityID string `json:"entity_id"`
	Title    string `json:"title"`
	Property string `json:"property"`
	Value    string `json:"value"`
	Target   string `json:"target"`
	Text     string `json:"text"`
}

// Sink delivers one notification to its target.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// NATSSink publishes notifications as JSON messages on a subject
// derived from the target, for the chat relay to deliver.
type NATSSink struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSSink creates a sink publishing under subjectPrefix
// (e.g. "notify.channel").
func NewNATSSink(nc *nats.Conn, subjectPrefix string) *NATSSink {
	return &NATSSink{nc: nc, subjectPrefix: subjectPrefix}
}

type wireNotification struct {
	Notification
	Timestamp time.Time `json:"timestamp"`
}

// Send publishes the notification.
func (s *NATSSink) Send(_ context.Context, n Notification) error {
	data, err := json.Marshal(wireNotification{Notification: n, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	subject := s.subjectPrefix + "." + sanitizeToken(n.Target)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish notification to %s: %w", subject, err)
	}
	return nil
}

// sanitizeToken makes a target safe to embed in a NATS subject.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '-'
		}
		return r
	}, s)
}

// LogSink writes notifications to the log. Used in development and as
// a fallback when no NATS connection is configured.
type LogSink struct {
	Logger *slog.Logger
}

// Send logs the notification.
func (s *LogSink) Send(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"rule_id", n.RuleID,
		"entity_id", n.EntityID,
		"target", n.Target,
		"text", n.Text)
	return nil
}
