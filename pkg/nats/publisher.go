package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/venuex/router/pkg/events"
)

// Publisher forwards the core's typed events onto NATS subjects for
// external consumers. Delivery is fire-and-forget: publish failures are
// logged and never propagate back into the emitting call.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// Config holds NATS connection settings.
type Config struct {
	URL  string
	Name string
}

// NewPublisher connects to NATS with unbounded reconnects.
func NewPublisher(config Config) (*Publisher, error) {
	logger := logrus.WithField("component", "nats-publisher")

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Errorf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Errorf("NATS error: %v", err)
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger,
	}, nil
}

// Publish sends a JSON-encoded payload on the given subject.
func (p *Publisher) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// AttachBus subscribes the publisher to the in-process event bus so
// every core event is mirrored outward.
func (p *Publisher) AttachBus(bus *events.Bus) {
	bus.Subscribe(events.EventVenueAdded, func(ev events.Event) {
		payload, ok := ev.Payload.(events.VenueAdded)
		if !ok {
			return
		}
		p.forward(VenueAddedSubject(payload.VenueID), ev)
	})
	bus.Subscribe(events.EventVenueStatusChanged, func(ev events.Event) {
		payload, ok := ev.Payload.(events.VenueStatusChanged)
		if !ok {
			return
		}
		p.forward(VenueStatusSubject(payload.VenueID), ev)
	})
	bus.Subscribe(events.EventTradeExecuted, func(ev events.Event) {
		payload, ok := ev.Payload.(events.TradeExecuted)
		if !ok {
			return
		}
		p.forward(TradeExecutedSubject(payload.ExecutionID), ev)
	})
	bus.Subscribe(events.EventHealthChanged, func(ev events.Event) {
		p.forward(SubjectHealthChanged, ev)
	})
}

func (p *Publisher) forward(subject string, ev events.Event) {
	if err := p.Publish(subject, ev); err != nil {
		p.logger.WithError(err).WithField("subject", subject).
			Warn("event publish failed")
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}
