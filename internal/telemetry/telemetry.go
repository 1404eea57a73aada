// Package telemetry mirrors solved multilateration positions to an optional
// AMQP fanout exchange, generalizing the teacher's updateFlights/
// startUpdater ticker-and-publish pattern (billglover-go-adsb-console,
// updater.go) from "publish the whole scan periodically" to "publish one
// event per solved position, right when it happens".
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// ResultEvent is the compact summary published for each forwarded result.
type ResultEvent struct {
	TimestampUnix float64 `json:"timestamp"`
	ICAO          uint32  `json:"icao"`
	ECEFX         float64 `json:"ecef_x"`
	ECEFY         float64 `json:"ecef_y"`
	ECEFZ         float64 `json:"ecef_z"`
	Contributors  int     `json:"contributors"`
	Distinct      int     `json:"distinct"`
}

// Publisher publishes ResultEvents to a fanout exchange. A nil *Publisher
// is valid and Publish becomes a no-op: the coordination core must work
// with no message broker configured at all, since the original has no such
// dependency.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	url      string
}

// Dial connects to the given AMQP URL and declares exchange as a
// non-durable fanout exchange, matching the teacher's ExchangeDeclare call.
// If url is empty, Dial returns (nil, nil): telemetry publishing is simply
// disabled.
func Dial(url, exchange string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // kind
		false,    // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	p := &Publisher{conn: conn, ch: ch, exchange: exchange, url: url}

	closures := conn.NotifyClose(make(chan *amqp.Error, 1))
	go p.watchClose(closures)

	return p, nil
}

func (p *Publisher) watchClose(closures chan *amqp.Error) {
	if _, ok := <-closures; !ok {
		return
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return
	}

	p.mu.Lock()
	p.conn, p.ch = conn, ch
	p.mu.Unlock()

	go p.watchClose(conn.NotifyClose(make(chan *amqp.Error, 1)))
}

// Publish marshals event and publishes it to the configured exchange. A nil
// Publisher makes this a no-op. Any other failure, including having no live
// channel, is returned as an error; result fan-out logs and swallows it
// exactly like a per-receiver forward failure.
func (p *Publisher) Publish(ctx context.Context, event ResultEvent) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	p.mu.Lock()
	ch := p.ch
	exchange := p.exchange
	p.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("no amqp channel available")
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Body:         body,
	}

	return ch.Publish(exchange, "", false, false, msg)
}

// Close tears down the connection. Safe to call on a nil Publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
