// Package bus publishes call lifecycle events to NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/config"
)

// Publisher receives call events.
type Publisher interface {
	Publish(ctx context.Context, event string, s call.Session) error
	Close()
}

// Message is the JSON payload published for each event.
type Message struct {
	Event     string       `json:"event"`
	Session   call.Session `json:"session"`
	Timestamp time.Time    `json:"timestamp"`
}

// Subject returns the subject an event is published on.
func Subject(prefix, event string) string {
	if prefix == "" {
		return "call." + event
	}
	return prefix + ".call." + event
}

// Client wraps a NATS connection.
type Client struct {
	conn   *nats.Conn
	prefix string
	log    *logrus.Entry
}

// Connect dials the configured servers.
func Connect(ctx context.Context, cfg config.BusConfig, log *logrus.Entry) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := []nats.Option{
		nats.Name("gesturecall"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("server", c.ConnectedUrl()).Info("reconnected to NATS")
		}),
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.WithField("servers", url).Info("connected to NATS")

	return &Client{conn: conn, prefix: cfg.SubjectPrefix, log: log}, nil
}

// Publish sends the session as a JSON message on the event's subject.
func (c *Client) Publish(ctx context.Context, event string, s call.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{Event: event, Session: s, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	subject := Subject(c.prefix, event)
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

// Healthy reports whether the connection is up.
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// Nop discards every event. It is used when the bus is disabled.
type Nop struct{}

func (Nop) Publish(ctx context.Context, event string, s call.Session) error { return nil }
func (Nop) Close()                                                          {}
