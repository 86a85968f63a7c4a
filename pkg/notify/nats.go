package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Default NATS settings.
const (
	DefaultSubject      = "issuetrend.builds"
	defaultMaxReconnect = 10
	defaultReconnect    = 2 * time.Second
	defaultDrainTimeout = 5 * time.Second
)

// ErrDrainTimeout is returned by Close when pending publishes were not acknowledged in time.
var ErrDrainTimeout = errors.New("timed out waiting for pending publishes")

// asyncPublisher is the subset of nats.JetStreamContext used here.
type asyncPublisher interface {
	PublishAsync(subject string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// NATSPublisher publishes events to a JetStream subject asynchronously.
type NATSPublisher struct {
	conn         *nats.Conn
	js           asyncPublisher
	subject      string
	drainTimeout time.Duration
	logger       *slog.Logger
}

// DialNATS connects to url and returns a publisher for subject. An empty
// subject uses DefaultSubject.
func DialNATS(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.Name("issuetrend"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(defaultMaxReconnect),
		nats.ReconnectWait(defaultReconnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	p := newNATSPublisher(js, subject, logger)
	p.conn = nc

	return p, nil
}

func newNATSPublisher(js asyncPublisher, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}

	return &NATSPublisher{js: js, subject: subject, drainTimeout: defaultDrainTimeout, logger: logger}
}

// Publish implements Publisher. Events are deduplicated by id on the server.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := p.js.PublishAsync(p.subject, data, nats.MsgId(event.ID)); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}

	p.logger.DebugContext(ctx, "event published", "subject", p.subject, "build", event.BuildID, "size", len(data))

	return nil
}

// Close waits for pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	var err error

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(p.drainTimeout):
		err = ErrDrainTimeout
	}

	if p.conn != nil {
		p.conn.Close()
	}

	return err
}
