package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpguard/internal/domain"
	"pumpguard/internal/storage/memory"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestTelegramSink_Format(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender, "-100123", 0)

	err := sink.Deliver(context.Background(), domain.Alert{
		Kind:    domain.AlertRug,
		Title:   "RUG PULL DETECTED - CRITICAL",
		Message: "Token: X",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	p := sender.sent[0]
	assert.Equal(t, "-100123", p.ChatID)
	assert.Equal(t, "🚨 *RUG PULL DETECTED - CRITICAL*\n\nToken: X", p.Text)
	assert.Equal(t, models.ParseModeMarkdownV1, p.ParseMode)
}

func TestTelegramSink_RateLimit(t *testing.T) {
	sender := &fakeSender{}
	sink := NewTelegramSink(sender, "1", 2)

	ctx := context.Background()
	require.NoError(t, sink.Deliver(ctx, domain.Alert{}))
	require.NoError(t, sink.Deliver(ctx, domain.Alert{}))
	assert.ErrorIs(t, sink.Deliver(ctx, domain.Alert{}), ErrRateLimited)
	assert.Equal(t, 2, sender.count())
}

func TestTelegramSink_SendError(t *testing.T) {
	sink := NewTelegramSink(&fakeSender{err: errors.New("boom")}, "1", 0)
	assert.Error(t, sink.Deliver(context.Background(), domain.Alert{}))
}

func TestEmoji(t *testing.T) {
	assert.Equal(t, "🐋📈", Emoji(domain.AlertWhaleBuy))
	assert.Equal(t, "🐋📉", Emoji(domain.AlertWhaleSell))
	assert.Equal(t, "🆕", Emoji(domain.AlertNewToken))
	assert.Equal(t, "⚠️", Emoji(domain.AlertSuspicious))
	assert.Equal(t, "📢", Emoji("other"))
}

func TestStartSink_FailingSinkDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	store := memory.NewAlertStore()
	failing := &fakeSender{err: errors.New("telegram down")}

	ctx, cancel := context.WithCancel(context.Background())
	storeDone := StartSink(ctx, bus, NewStoreSink(store), 10, zerolog.Nop())
	tgDone := StartSink(ctx, bus, NewTelegramSink(failing, "1", 0), 10, zerolog.Nop())

	bus.mu.Lock()
	assert.Len(t, bus.subs, 2)
	bus.mu.Unlock()

	bus.Publish(domain.Alert{Kind: domain.AlertRug})
	bus.Publish(domain.Alert{Kind: domain.AlertRug})

	require.Eventually(t, func() bool {
		got, _ := store.Recent(context.Background(), 10)
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-storeDone
	<-tgDone
	assert.Len(t, bus.Recent(0), 2)

	bus.mu.Lock()
	assert.Empty(t, bus.subs)
	bus.mu.Unlock()
}
