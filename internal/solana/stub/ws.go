package stub

import (
	"context"
	"errors"
	"sync"

	"pumpguard/internal/solana"
)

// ErrClosed is returned by SubscribeLogs after Close.
var ErrClosed = errors.New("stub websocket closed")

// WSClient implements solana.WSClient for testing. Every SubscribeLogs call
// opens a fresh subscription; Push feeds the newest one.
type WSClient struct {
	mu            sync.Mutex
	current       chan solana.LogNotification
	filters       []solana.LogsFilter
	unsubscribes  int
	closed        bool
	subscribeFail error
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a new stub websocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// SubscribeLogs opens a subscription.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (*solana.LogSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.subscribeFail != nil {
		return nil, c.subscribeFail
	}

	ch := make(chan solana.LogNotification, 64)
	c.current = ch
	c.filters = append(c.filters, filter)

	var once sync.Once
	return solana.NewLogSubscription(ch, func(context.Context) error {
		once.Do(func() {
			c.mu.Lock()
			c.unsubscribes++
			if c.current == ch {
				c.current = nil
			}
			c.mu.Unlock()
			close(ch)
		})
		return nil
	}), nil
}

// Push delivers n to the active subscription. Returns false when none is open.
func (c *WSClient) Push(n solana.LogNotification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current <- n
	return true
}

// FailSubscribe makes later SubscribeLogs calls return err.
func (c *WSClient) FailSubscribe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribeFail = err
}

// Filters returns the filters of every subscription opened so far.
func (c *WSClient) Filters() []solana.LogsFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solana.LogsFilter(nil), c.filters...)
}

// Active reports whether a subscription is open.
func (c *WSClient) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Unsubscribes returns how many subscriptions were cancelled.
func (c *WSClient) Unsubscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribes
}

// Close implements solana.WSClient.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
