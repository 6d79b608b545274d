// Package changewatcher provides a processor that polls the project board
// for entities matching watch rules and publishes one-time notifications
// when a matching state transition is first observed.
package changewatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/mediaops/prodsync/board"
	"github.com/mediaops/prodsync/watch"
)

// Component implements the change-watcher processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	boardClient board.Client
	boardToken  string

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Built during Start; needs a live JetStream context.
	registry *watch.Registry
	poller   *watch.Poller

	// Metrics
	notificationsSent atomic.Int64
	lastCycleMu       sync.RWMutex
	lastCycle         time.Time
}

// NewComponent creates a new change-watcher processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.PollInterval == 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.PageSize == 0 {
		config.PageSize = defaults.PageSize
	}
	if config.DedupTTL == 0 {
		config.DedupTTL = defaults.DedupTTL
	}
	if config.DefaultRule.Property == "" {
		config.DefaultRule = defaults.DefaultRule
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	token := config.BoardToken
	if token == "" {
		token = os.Getenv("PRODSYNC_BOARD_TOKEN")
	}

	return &Component{
		name:        "change-watcher",
		config:      config,
		natsClient:  deps.NATSClient,
		logger:      deps.GetLogger(),
		boardClient: board.NewHTTPClient(config.BoardURL, token, board.WithLogger(deps.GetLogger())),
		boardToken:  token,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized change-watcher",
		"poll_interval", c.config.PollInterval,
		"collection_id", c.config.CollectionID)
	return nil
}

// Start begins polling watch rules.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	store, err := c.buildRuleStore(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("create rule store: %w", err)
	}

	defaultRule := watch.BuiltinRule(
		c.config.DefaultRule.Name,
		c.config.DefaultRule.Property,
		c.config.DefaultRule.Value,
		c.config.DefaultRule.Target,
	)
	registry, err := watch.NewRegistry(ctx, store, defaultRule, c.logger)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("load watch rules: %w", err)
	}
	c.registry = registry

	c.poller = watch.NewPoller(
		c.boardClient,
		c.config.CollectionID,
		registry,
		&streamSink{component: c},
		watch.WithInterval(c.config.PollInterval),
		watch.WithPageSize(c.config.PageSize),
		watch.WithDedupTTL(c.config.DedupTTL),
		watch.WithBoardToken(c.boardToken),
		watch.WithPollerLogger(c.logger),
	)

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	// Rules file edited out of band: reload the registry.
	if fileStore, ok := store.(*watch.FileRuleStore); ok {
		if err := fileStore.Watch(subCtx, func() {
			if err := registry.Reload(subCtx); err != nil {
				c.logger.Warn("Failed to reload watch rules", "error", err)
			}
		}); err != nil {
			c.logger.Warn("Rules file watch unavailable", "error", err)
		}
	}

	go func() {
		c.poller.Run(subCtx)
	}()

	c.logger.Info("change-watcher started",
		"poll_interval", c.config.PollInterval,
		"collection_id", c.config.CollectionID,
		"rules", len(registry.Rules()))

	return nil
}

// buildRuleStore picks file-backed or KV-backed rule storage.
func (c *Component) buildRuleStore(ctx context.Context) (watch.RuleStore, error) {
	if c.config.RulesPath != "" {
		return watch.NewFileRuleStore(c.config.RulesPath, c.logger), nil
	}
	js, err := c.natsClient.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	return watch.NewKVRuleStore(ctx, js)
}

// Registry exposes the rule registry for chat commands.
func (c *Component) Registry() *watch.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("change-watcher stopped",
		"notifications_sent", c.notificationsSent.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "change-watcher",
		Type:        "processor",
		Description: "Polls board watch rules and publishes one-time notifications",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	return []component.Port{}
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return watcherSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastCycle(),
	}
}

func (c *Component) updateLastCycle() {
	c.lastCycleMu.Lock()
	c.lastCycle = time.Now()
	c.lastCycleMu.Unlock()
}

func (c *Component) getLastCycle() time.Time {
	c.lastCycleMu.RLock()
	defer c.lastCycleMu.RUnlock()
	return c.lastCycle
}

// streamSink publishes notifications to the WATCH stream.
type streamSink struct {
	component *Component
}

// Send publishes one notification to the WATCH stream.
func (s *streamSink) Send(ctx context.Context, n watch.Notification) error {
	c := s.component
	c.updateLastCycle()

	event := NotificationEvent{
		RuleID:    n.RuleID,
		EntityID:  n.EntityID,
		Title:     n.Title,
		Property:  n.Property,
		Value:     n.Value,
		Target:    n.Target,
		Text:      n.Text,
		Timestamp: time.Now(),
	}

	baseMsg := message.NewBaseMessage(NotificationEventType, &event, "change-watcher")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("watch.notify.%s", subjectToken(n.RuleID))
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	c.notificationsSent.Add(1)
	return nil
}

// subjectToken makes an identifier safe for use as a NATS subject token.
func subjectToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "general"
	}
	return b.String()
}

// NotificationEvent is the payload published for a state transition.
type NotificationEvent struct {
	RuleID    string    `json:"rule_id"`
	EntityID  string    `json:"entity_id"`
	Title     string    `json:"title"`
	Property  string    `json:"property"`
	Value     string    `json:"value"`
	Target    string    `json:"target"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Schema returns the message type for this payload.
func (e *NotificationEvent) Schema() message.Type {
	return NotificationEventType
}

// Validate validates the event.
func (e *NotificationEvent) Validate() error {
	if e.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}
	if e.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if e.Target == "" {
		return fmt.Errorf("target is required")
	}
	return nil
}

// MarshalJSON marshals the event to JSON.
func (e *NotificationEvent) MarshalJSON() ([]byte, error) {
	type Alias NotificationEvent
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON unmarshals the event from JSON.
func (e *NotificationEvent) UnmarshalJSON(data []byte) error {
	type Alias NotificationEvent
	return json.Unmarshal(data, (*Alias)(e))
}

// NotificationEventType is the message type for watch notifications.
var NotificationEventType = message.Type{
	Domain:   "watch",
	Category: "notification",
	Version:  "v1",
}
