package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes booking events to NATS JetStream.
type JetStreamPublisher struct {
	js     streamPublisher
	conn   *nats.Conn
	logger *logging.Logger
}

// NATSConfig configures the JetStream connection.
type NATSConfig struct {
	URL   string
	Token string
}

// ConnectJetStream dials NATS, makes sure the booking stream exists and
// returns a publisher bound to it.
func ConnectJetStream(ctx context.Context, cfg NATSConfig, logger *logging.Logger) (*JetStreamPublisher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []nats.Option{
		nats.Name("salon-whatsapp-assistant"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: jetstream context: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{subjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Description: "Salon booking lifecycle events",
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: ensure stream: %w", err)
	}
	p := newJetStreamPublisher(js, logger)
	p.conn = nc
	return p, nil
}

func newJetStreamPublisher(js streamPublisher, logger *logging.Logger) *JetStreamPublisher {
	if js == nil {
		panic("events: jetstream required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JetStreamPublisher{js: js, logger: logger}
}

// Publish writes the event on its subject. The event id doubles as the
// JetStream message id so redelivered publishes are deduplicated.
func (p *JetStreamPublisher) Publish(ctx context.Context, evt BookingEvent) error {
	if !strings.HasPrefix(evt.Subject, subjectPrefix+".") {
		return fmt.Errorf("events: subject %q outside stream", evt.Subject)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	ack, err := p.js.Publish(ctx, evt.Subject, data, jetstream.WithMsgID(evt.EventID))
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", evt.Subject, err)
	}
	p.logger.Debug("booking event published", "subject", evt.Subject, "customer_id", evt.CustomerID, "sequence", ack.Sequence)
	return nil
}

// Close drains the underlying connection.
func (p *JetStreamPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
