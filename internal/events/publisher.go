// Package events publishes simulation lifecycle events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"github.com/medcircle/medresident/internal/errors"
	"github.com/medcircle/medresident/internal/simulation"
	amqp "github.com/rabbitmq/amqp091-go"
	"log/slog"
	"time"
)

const publishTimeout = 5 * time.Second

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher is a [simulation.Observer] forwarding lifecycle events. Countdown ticks are not forwarded.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *slog.Logger
}

// Message is the JSON body of a published event.
type Message struct {
	Type         simulation.EventType `json:"type"`
	SimulationID string               `json:"simulationId"`
	ScenarioID   string               `json:"scenarioId,omitempty"`
	DecisionID   string               `json:"decisionId,omitempty"`
	Score        int                  `json:"score"`
	Complete     bool                 `json:"complete"`
	Performance  string               `json:"performance,omitempty"`
	TimedOut     bool                 `json:"timedOut"`
	At           time.Time            `json:"at"`
}

// NewPublisher connects to url and declares the durable topic exchange. An empty url returns a disabled publisher
// that drops every event.
func NewPublisher(url string, exchange string, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{conn: nil, channel: nil, exchange: exchange, logger: logger}
	if url == "" {
		return p, nil
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Join(errors.Wrap(err, "open channel"), conn.Close())
	}
	if err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, errors.Join(errors.Wrap(err, "declare exchange", slog.String("exchange", exchange)),
			ch.Close(), conn.Close())
	}
	p.conn = conn
	p.channel = ch
	return p, nil
}

// Enabled reports whether events are actually published.
func (p *Publisher) Enabled() bool {
	return p.channel != nil
}

// RoutingKey returns the routing key of events of type t.
func RoutingKey(t simulation.EventType) string {
	return "simulation." + string(t)
}

func (p *Publisher) OnEvent(ctx context.Context, e simulation.Event) {
	if !p.Enabled() || e.Type == simulation.EventTicked {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelError, "publish simulation event failed", errors.SlogError(err))
	}
}

// Publish sends e to the exchange.
func (p *Publisher) Publish(ctx context.Context, e simulation.Event) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(NewMessage(e))
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	key := RoutingKey(e.Type)
	if err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{ //nolint:exhaustruct // AMQP defaults
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		Body:         body,
	}); err != nil {
		return errors.Wrap(err, "publish", slog.String("routing_key", key))
	}
	return nil
}

// NewMessage summarises e for the consumers of the exchange.
func NewMessage(e simulation.Event) Message {
	m := Message{
		Type:         e.Type,
		SimulationID: e.Snapshot.ID,
		ScenarioID:   e.Snapshot.ScenarioID,
		DecisionID:   "",
		Score:        e.Snapshot.Score,
		Complete:     e.Snapshot.Complete,
		Performance:  "",
		TimedOut:     e.Snapshot.TimedOut,
		At:           e.At,
	}
	if e.Snapshot.Current != nil {
		m.DecisionID = e.Snapshot.Current.ID
	}
	if e.Snapshot.Complete {
		m.Performance = e.Snapshot.Performance.Slug()
	}
	return m
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	var err error
	if closeErr := p.channel.Close(); closeErr != nil {
		err = errors.Wrap(closeErr, "close channel")
	}
	if p.conn != nil {
		err = errors.Join(err, errors.Wrap(p.conn.Close(), "close connection"))
	}
	return err
}
