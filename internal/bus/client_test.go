package bus

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/config"
)

func nullEntry() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, event, want string
	}{
		{"gesturecall", "accepted", "gesturecall.call.accepted"},
		{"desk.office", "ringing", "desk.office.call.ringing"},
		{"", "declined", "call.declined"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(tt.prefix, tt.event))
		})
	}
}

func TestConnect_NoServers(t *testing.T) {
	_, err := Connect(context.Background(), config.BusConfig{}, nullEntry())
	assert.ErrorContains(t, err, "no NATS servers")
}

func TestConnect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, config.BusConfig{Servers: []string{"nats://127.0.0.1:4222"}}, nullEntry())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.BusConfig{
		Servers:        []string{"nats://127.0.0.1:1"},
		ConnectTimeout: 200,
	}
	_, err := Connect(context.Background(), cfg, nullEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to nats")
}

func TestClient_NilSafe(t *testing.T) {
	var c *Client
	assert.False(t, c.Healthy())
	assert.NotPanics(t, c.Close)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), "ringing", call.Session{ID: "x"}))
	p.Close()
}
