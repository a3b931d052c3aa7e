// Package priceclient maintains the single upstream price WebSocket
// connection the price fan-out and oracle pusher both depend on. It
// implements spec.md §4.7's reconnect-with-initial-failure-semantics,
// grounded directly on original_source/src/bot/ws.rs's reconnect state
// machine: the very first connect failure is fatal, every failure after a
// successful connect retries forever on a fixed 10-second backoff.
package priceclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	idleTimeout   = 10 * time.Second
	retryInterval = 10 * time.Second
	writeWait     = 5 * time.Second
	readBuffer    = 32
)

// Handler processes one inbound frame. It must not block for long; the
// read loop waits for it to return before dispatching the next frame.
type Handler func(messageType int, data []byte)

type wsMessage struct {
	messageType int
	data        []byte
}

// Client maintains a single upstream WebSocket connection forever.
type Client struct {
	url          string
	subscribeMsg []byte // optional frame sent right after connect; nil to skip
	handler      Handler
	log          *slog.Logger
}

// New constructs a Client. subscribeMsg may be nil.
func New(url string, subscribeMsg []byte, handler Handler, log *slog.Logger) *Client {
	return &Client{
		url:          url,
		subscribeMsg: subscribeMsg,
		handler:      handler,
		log:          log.With("component", "priceclient"),
	}
}

// Run connects and serves until ctx is cancelled. The very first dial
// failure is returned immediately as fatal (a config/address bug,
// spec.md §4.7); every failure afterward — whether a dropped connection
// or a later dial failure — is logged and retried after retryInterval,
// forever.
func (c *Client) Run(ctx context.Context) error {
	firstRun := true

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if firstRun {
				return fmt.Errorf("priceclient: initial connect: %w", err)
			}
			c.log.Warn("reconnect failed, retrying", "error", err, "backoff", retryInterval)
			if !c.wait(ctx) {
				return ctx.Err()
			}
			continue
		}
		firstRun = false

		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("connection lost, reconnecting", "error", err, "backoff", retryInterval)
		if !c.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (c *Client) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(retryInterval):
		return true
	}
}

// serve drives one connection: sends the optional subscribe frame, then
// dispatches inbound frames to handler while watching a 10-second idle
// timer that's reset on every frame (data, ping, or pong).
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	if c.subscribeMsg != nil {
		if err := conn.WriteMessage(websocket.TextMessage, c.subscribeMsg); err != nil {
			return fmt.Errorf("priceclient: send subscribe: %w", err)
		}
	}

	idle := make(chan struct{}, 1)
	notifyIdle := func() {
		select {
		case idle <- struct{}{}:
		default:
		}
	}

	conn.SetPingHandler(func(appData string) error {
		notifyIdle()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
	conn.SetPongHandler(func(appData string) error {
		notifyIdle()
		return conn.WriteControl(websocket.PingMessage, []byte(appData), time.Now().Add(writeWait))
	})

	msgCh := make(chan wsMessage, readBuffer)
	readErr := make(chan error, 1)
	go func() {
		defer close(msgCh)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			notifyIdle()
			msgCh <- wsMessage{messageType: mt, data: data}
		}
	}()

	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.sendClose(conn)
			return ctx.Err()
		case <-idle:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idleTimeout)
		case <-timer.C:
			return fmt.Errorf("priceclient: idle timeout after %s", idleTimeout)
		case msg, ok := <-msgCh:
			if !ok {
				return <-readErr
			}
			c.handler(msg.messageType, msg.data)
		}
	}
}

func (c *Client) sendClose(conn *websocket.Conn) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
