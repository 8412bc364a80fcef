package jetstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/messaging"
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string

	// DuplicateWindow is how long the stream de-duplicates message ids
	DuplicateWindow time.Duration
}

const (
	defaultSubjectPrefix   = "marketplace.raw"
	defaultDuplicateWindow = 2 * time.Hour
)

func (c Config) subjectPrefix() string {
	if c.SubjectPrefix == "" {
		return defaultSubjectPrefix
	}
	return strings.TrimSuffix(c.SubjectPrefix, ".")
}

// Subject returns the subject raw events of a chain are published on.
// Format: {prefix}.{chain}.{event}, e.g. marketplace.raw.ethereum.NewBid
func (c Config) Subject(chain string, eventName string) string {
	return fmt.Sprintf("%s.%s.%s", c.subjectPrefix(), chain, eventName)
}

type publisher struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	config Config
	json   adapter.JSON
}

// NewPublisher creates a new NATS JetStream publisher and makes sure the stream exists
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	nc, js, err := connect(cfg, natsJS)
	if err != nil {
		return nil, err
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	return &publisher{
		nc:     nc,
		js:     js,
		config: cfg,
		json:   jsonAdapter,
	}, nil
}

// PublishEvent publishes a raw contract event to NATS JetStream. The event key is used
// as the message id so re-publishing after a restart is dropped by the stream.
func (p *publisher) PublishEvent(ctx context.Context, event *domain.RawEvent) error {
	logger.DebugCtx(ctx, "Publishing Nats event", zap.String("eventKey", event.Key()), zap.String("name", event.Name))

	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.config.Subject(event.Chain, event.Name)

	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.Key()))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if ack != nil && ack.Duplicate {
		logger.DebugCtx(ctx, "Event already published", zap.String("eventKey", event.Key()))
	}

	return nil
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}

// connect opens a NATS connection with reconnect handling
func connect(cfg Config, natsJS adapter.NatsJetStream) (adapter.NatsConn, adapter.JetStream, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return nc, js, nil
}

// ensureStream creates or updates the raw event stream
func ensureStream(ctx context.Context, js adapter.JetStream, cfg Config) error {
	window := cfg.DuplicateWindow
	if window <= 0 {
		window = defaultDuplicateWindow
	}

	info, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.subjectPrefix() + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: window,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	fields := []zap.Field{zap.String("stream", cfg.StreamName)}
	if info != nil {
		fields = append(fields, zap.Uint64("messages", info.State.Msgs))
	}
	logger.InfoCtx(ctx, "Stream ready", fields...)
	return nil
}
