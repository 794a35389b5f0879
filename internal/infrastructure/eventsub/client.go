// Package eventsub is a Twitch EventSub WebSocket client: session handshake,
// subscription creation, notification dispatch and reconnection with backoff.
package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"djBot/internal/infrastructure/telemetry"
)

const (
	DefaultURL = "wss://eventsub.wss.twitch.tv/ws"

	TypeRedemptionAdd = "channel.channel_points_custom_reward_redemption.add"

	defaultMaxAttempts = 5
	maxBackoff         = 32 * time.Second
	keepaliveGrace     = 10 * time.Second

	// Twitch sends the welcome right after the upgrade.
	defaultWelcomeTimeout = 10*time.Second + keepaliveGrace
)

// ErrGaveUp is returned by Run once the reconnect attempts are exhausted. The
// client stays Disconnected until restarted.
var ErrGaveUp = errors.New("eventsub: gave up after repeated connection failures")

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingSession
	StateSubscribing
	StateActive
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingSession:
		return "awaiting_session"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Subscription is declared before Run and re-created on every new session.
type Subscription struct {
	Type          string
	Version       string
	BroadcasterID string
}

// Subscriber creates one subscription bound to a websocket session and
// returns the HTTP status of the request.
type Subscriber interface {
	CreateSubscription(ctx context.Context, sessionID string, sub Subscription) (int, error)
}

// Handler receives the raw event of one notification.
type Handler func(ctx context.Context, event json.RawMessage) error

type Client struct {
	url         string
	subscriber  Subscriber
	dialer      *websocket.Dialer
	logger      *zap.Logger
	maxAttempts int
	welcomeWait time.Duration
	backoff     func(attempt int) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	subs      []Subscription
	handlers  map[string]Handler
	sessionID string

	state   atomic.Int32
	running atomic.Bool
}

type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithWelcomeTimeout bounds the wait for session_welcome on a fresh
// connection.
func WithWelcomeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.welcomeWait = d
		}
	}
}

// WithBackoff replaces the delay schedule, mostly for tests.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

func NewClient(subscriber Subscriber, opts ...Option) *Client {
	c := &Client{
		url:         DefaultURL,
		subscriber:  subscriber,
		dialer:      websocket.DefaultDialer,
		logger:      zap.NewNop(),
		maxAttempts: defaultMaxAttempts,
		welcomeWait: defaultWelcomeTimeout,
		backoff:     Backoff,
		sleep:       sleepCtx,
		handlers:    make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff is min(2^attempt, 32) seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= 6 {
		return maxBackoff
	}
	d := time.Duration(1<<attempt) * time.Second
	return min(d, maxBackoff)
}

// Subscribe declares a subscription and the handler for its event type.
func (c *Client) Subscribe(sub Subscription, h Handler) {
	if sub.Version == "" {
		sub.Version = "1"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, sub)
	if h != nil {
		c.handlers[sub.Type] = h
	}
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Debug("eventsub: state", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Run owns the connection until ctx is done or the reconnect budget is spent.
// Only one Run may be active per Client.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("eventsub: already running")
	}
	defer c.running.Store(false)
	defer c.setState(StateDisconnected)

	url := c.url
	attempt := 0
	for {
		c.setState(StateConnecting)
		next, handshook, err := c.session(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if handshook {
			attempt = 0
		}
		if next != "" {
			c.logger.Info("eventsub: server requested reconnect", zap.String("url", next))
			url = next
			attempt = 0
			continue
		}

		url = c.url
		attempt++
		if attempt > c.maxAttempts {
			c.logger.Error("eventsub: max reconnection attempts reached, giving up", zap.Error(err))
			return ErrGaveUp
		}
		c.setState(StateReconnecting)
		telemetry.EventSubReconnects.Inc()
		delay := c.backoff(attempt)
		c.logger.Warn("eventsub: connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts))
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// session runs one connection. It returns the reconnect URL when the server
// asked to move, whether a welcome was received, and the transport error.
func (c *Client) session(ctx context.Context, url string) (string, bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return "", false, fmt.Errorf("eventsub: dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.setState(StateAwaitingSession)
	_ = conn.SetReadDeadline(time.Now().Add(c.welcomeWait))
	handshook := false
	keepalive := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", handshook, fmt.Errorf("eventsub: read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("eventsub: bad message", zap.Error(err))
			continue
		}

		switch env.Metadata.MessageType {
		case msgSessionWelcome:
			var p sessionPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return "", handshook, fmt.Errorf("eventsub: bad welcome: %w", err)
			}
			if p.Session.ID == "" {
				return "", handshook, errors.New("eventsub: welcome without session id")
			}
			handshook = true
			keepalive = p.Session.KeepaliveTimeoutSeconds
			extendDeadline(conn, keepalive)
			c.welcome(ctx, p.Session.ID)

		case msgSessionKeepalive:

		case msgNotification:
			c.dispatch(ctx, env)

		case msgSessionReconnect:
			var p sessionPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil || p.Session.ReconnectURL == "" {
				c.logger.Warn("eventsub: reconnect without url", zap.Error(err))
				continue
			}
			return p.Session.ReconnectURL, handshook, nil

		case msgRevocation:
			c.logger.Warn("eventsub: subscription revoked",
				zap.String("type", env.Metadata.SubscriptionType),
				zap.ByteString("payload", env.Payload))

		default:
			c.logger.Debug("eventsub: unknown message type", zap.String("type", env.Metadata.MessageType))
		}

		extendDeadline(conn, keepalive)
	}
}

// welcome records the session and creates every declared subscription on it.
func (c *Client) welcome(ctx context.Context, sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	c.logger.Info("eventsub: session established", zap.String("session_id", sessionID))

	c.setState(StateSubscribing)
	for _, sub := range subs {
		if c.subscriber == nil {
			break
		}
		status, err := c.subscriber.CreateSubscription(ctx, sessionID, sub)
		switch {
		case err != nil:
			c.logger.Error("eventsub: subscription error", zap.String("type", sub.Type), zap.Error(err))
		case status == http.StatusAccepted:
			c.logger.Info("eventsub: subscribed", zap.String("type", sub.Type))
		case status == http.StatusConflict:
			c.logger.Info("eventsub: subscription conflict (409)", zap.String("type", sub.Type))
		default:
			c.logger.Warn("eventsub: failed to subscribe", zap.String("type", sub.Type), zap.Int("status", status))
		}
	}
	c.setState(StateActive)
}

// dispatch runs the handler for one notification. A failing or panicking
// handler never breaks the read loop.
func (c *Client) dispatch(ctx context.Context, env envelope) {
	var p notificationPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		c.logger.Warn("eventsub: bad notification", zap.Error(err))
		return
	}
	subType := env.Metadata.SubscriptionType
	if subType == "" {
		subType = p.Subscription.Type
	}
	telemetry.EventSubNotifications.WithLabelValues(subType).Inc()

	c.mu.RLock()
	h := c.handlers[subType]
	c.mu.RUnlock()
	if h == nil {
		c.logger.Debug("eventsub: no handler", zap.String("type", subType))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("eventsub: handler panic", zap.String("type", subType), zap.Any("panic", r))
		}
	}()
	if err := h(ctx, p.Event); err != nil {
		c.logger.Error("eventsub: handler error", zap.String("type", subType), zap.Error(err))
	}
}

func extendDeadline(conn *websocket.Conn, keepaliveSeconds int) {
	if keepaliveSeconds <= 0 {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Duration(keepaliveSeconds)*time.Second + keepaliveGrace))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
