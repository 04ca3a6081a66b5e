package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/observability"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// RequestTimeout bounds the wait for a subscribe/unsubscribe reply.
	RequestTimeout time.Duration
	// BufferSize is the per-subscription channel capacity.
	BufferSize int
	// Commitment is sent with logsSubscribe.
	Commitment string
	// Logger receives connection lifecycle events.
	Logger *zerolog.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		RequestTimeout:    30 * time.Second,
		BufferSize:        10000,
		Commitment:        DefaultCommitment,
	}
}

// withDefaults fills zero fields from d.
func (c WSClientConfig) withDefaults(d WSClientConfig) WSClientConfig {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Commitment == "" {
		c.Commitment = d.Commitment
	}
	return c
}

type logSub struct {
	handle   uint64
	filter   LogsFilter
	serverID int64

	ch       chan LogNotification
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex // serializes delivery against close
	closed   bool
}

type wsReply struct {
	result json.RawMessage
	err    error
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64
	handleSeq atomic.Uint64

	subsMu     sync.RWMutex
	subs       map[uint64]*logSub
	byServerID map[int64]*logSub

	pendingMu sync.Mutex
	pending   map[uint64]chan wsReply

	done         chan struct{}
	wg           sync.WaitGroup
	reconnecting atomic.Bool
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = config.withDefaults(cfg)
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &WSClientImpl{
		endpoint:   endpoint,
		config:     cfg,
		logger:     logger.With().Str("component", "ws").Logger(),
		subs:       make(map[uint64]*logSub),
		byServerID: make(map[int64]*logSub),
		pending:    make(map[uint64]chan wsReply),
		done:       make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		observability.SetWebsocketConnected(false)
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	observability.SetWebsocketConnected(true)
	c.logger.Info().Str("endpoint", c.endpoint).Msg("websocket connected")
	return nil
}

// request sends a JSON-RPC request over the socket and waits for its reply.
func (c *WSClientImpl) request(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	replyCh := make(chan wsReply, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = replyCh
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return nil, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(wsRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params})
	c.connMu.Unlock()
	if err != nil {
		forget()
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, ErrClientClosed
		}
		return reply.result, reply.err
	case <-timer.C:
		forget()
		return nil, fmt.Errorf("%s timeout after %v", method, c.config.RequestTimeout)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	}
}

func (c *WSClientImpl) sendSubscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	mentions := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentions["mentions"] = filter.Mentions
	} else {
		mentions["all"] = nil
	}

	raw, err := c.request(ctx, "logsSubscribe", []interface{}{
		mentions,
		map[string]string{"commitment": c.config.Commitment},
	})
	if err != nil {
		return 0, err
	}

	var serverID int64
	if err := json.Unmarshal(raw, &serverID); err != nil {
		return 0, fmt.Errorf("decode subscription id: %w", err)
	}
	return serverID, nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error) {
	serverID, err := c.sendSubscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	sub := &logSub{
		handle:   c.handleSeq.Add(1),
		filter:   filter,
		serverID: serverID,
		ch:       make(chan LogNotification, c.config.BufferSize),
		stop:     make(chan struct{}),
	}

	c.subsMu.Lock()
	c.subs[sub.handle] = sub
	c.byServerID[serverID] = sub
	c.subsMu.Unlock()

	c.logger.Info().
		Strs("mentions", filter.Mentions).
		Int64("subscription", serverID).
		Msg("logs subscription active")

	return NewLogSubscription(sub.ch, func(ctx context.Context) error {
		return c.unsubscribe(ctx, sub.handle)
	}), nil
}

// unsubscribe drops the local stream and tells the node to stop sending.
func (c *WSClientImpl) unsubscribe(ctx context.Context, handle uint64) error {
	c.subsMu.Lock()
	sub, ok := c.subs[handle]
	if ok {
		delete(c.subs, handle)
		if c.byServerID[sub.serverID] == sub {
			delete(c.byServerID, sub.serverID)
		}
	}
	c.subsMu.Unlock()
	if !ok {
		return nil
	}

	sub.shutdown()

	if c.closed.Load() {
		return nil
	}
	if _, err := c.request(ctx, "logsUnsubscribe", []interface{}{sub.serverID}); err != nil {
		return fmt.Errorf("logs unsubscribe: %w", err)
	}
	return nil
}

func (s *logSub) shutdown() {
	// wake a blocked deliver before taking the lock
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver blocks until the consumer reads, the subscription stops or the client closes.
func (s *logSub) deliver(n LogNotification, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- n:
	case <-s.stop:
	case <-done:
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	subs := make([]*logSub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[uint64]*logSub)
	c.byServerID = make(map[int64]*logSub)
	c.subsMu.Unlock()

	for _, s := range subs {
		s.shutdown()
	}

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	observability.SetWebsocketConnected(false)
	return nil
}

func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			observability.SetWebsocketConnected(false)
			if !c.reconnecting.Swap(true) {
				c.logger.Warn().Err(err).Dur("delay", reconnectDelay).Msg("websocket read failed, reconnecting")
				go c.reconnect(conn, reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

func (c *WSClientImpl) reconnect(stale *websocket.Conn, delay time.Duration) {
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn == stale && c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("reconnect failed")
		return
	}
	c.resubscribeAll()
}

// resubscribeAll re-issues every active subscription on the new connection
// and remaps server ids. Local channels stay the same.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	subs := make([]*logSub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subsMu.RUnlock()

	for _, s := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		serverID, err := c.sendSubscribe(ctx, s.filter)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Strs("mentions", s.filter.Mentions).Msg("resubscribe failed")
			continue
		}

		c.subsMu.Lock()
		if _, live := c.subs[s.handle]; live {
			delete(c.byServerID, s.serverID)
			s.serverID = serverID
			c.byServerID[serverID] = s
		}
		c.subsMu.Unlock()
	}
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug().Err(err).Msg("undecodable websocket frame")
		return
	}

	if msg.Method == "logsNotification" {
		c.handleLogsNotification(msg.Params)
		return
	}
	if msg.ID == nil {
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	reply := wsReply{result: msg.Result}
	if msg.Error != nil {
		reply.err = msg.Error
	}
	ch <- reply
}

func (c *WSClientImpl) handleLogsNotification(params *wsNotificationParams) {
	if params == nil {
		return
	}

	c.subsMu.RLock()
	sub, ok := c.byServerID[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	n := LogNotification{
		Signature: params.Result.Value.Signature,
		Logs:      params.Result.Value.Logs,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}
	sub.deliver(n, c.done)
}

func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// a failed ping surfaces as a read error and triggers reconnect
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage covers both replies (id + result/error) and notifications (method + params).
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id"`
	Method  string                `json:"method"`
	Result  json.RawMessage       `json:"result"`
	Error   *rpcError             `json:"error"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
