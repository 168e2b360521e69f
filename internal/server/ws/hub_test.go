package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionarb/internal/domain"
)

type chanBus struct {
	chans map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{chans: map[string]chan []byte{}}
	for _, ch := range Channels {
		b.chans[ch] = make(chan []byte, 4)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.chans[channel] <- payload
	return nil
}

func (b *chanBus) PublishJSON(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(ctx, channel, payload)
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch, ok := b.chans[channel]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubRelaysBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newChanBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "Server"})
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.Contains(t, string(status.Data), `"mode":"server"`)

	require.NoError(t, bus.Publish(ctx, domain.ChannelScans, []byte(`{"ticker":"SPY","total":3}`)))
	evt := readEnvelope(t, conn)
	assert.Equal(t, "event", evt.Type)
	assert.Equal(t, domain.ChannelScans, evt.Channel)
	assert.JSONEq(t, `{"ticker":"SPY","total":3}`, string(evt.Data))
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{}}
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"optionarb:*"}})
	assert.True(t, c.isSubscribed(domain.ChannelOpportunities))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"optionarb:*"}})
	assert.False(t, c.isSubscribed(domain.ChannelOpportunities))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelScans}})
	assert.True(t, c.isSubscribed(domain.ChannelScans))
	assert.False(t, c.isSubscribed(domain.ChannelOpportunities))
}
