package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error)

	// Close closes the WebSocket connection and every subscription channel.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil for failed transactions
}

// LogSubscription is a live logsSubscribe stream.
// C is closed after Unsubscribe or when the client closes.
type LogSubscription struct {
	C           <-chan LogNotification
	unsubscribe func(ctx context.Context) error
}

// NewLogSubscription builds a subscription handle. Used by WSClient
// implementations and test doubles.
func NewLogSubscription(c <-chan LogNotification, unsubscribe func(ctx context.Context) error) *LogSubscription {
	return &LogSubscription{C: c, unsubscribe: unsubscribe}
}

// Unsubscribe stops the stream and closes C.
func (s *LogSubscription) Unsubscribe(ctx context.Context) error {
	if s == nil || s.unsubscribe == nil {
		return nil
	}
	return s.unsubscribe(ctx)
}
