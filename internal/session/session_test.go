package session

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klemz/internal/events"
	"klemz/internal/models"
	"klemz/internal/storage"
)

func newManager(t *testing.T) (*Manager, *events.Bus, storage.KV) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	kv := storage.NewRedisKV(client, "test")
	bus := events.NewBus()
	logger := zerolog.New(io.Discard)
	return NewManager(kv, bus, &logger), bus, kv
}

func TestCredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	_, err := m.Current(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, m.SetCredentials(ctx, "tok123", models.User{ID: "u1", FullName: "Ama"}))

	sess, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok123", sess.Token)
	assert.Equal(t, "u1", sess.User.ID)

	token, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
}

func TestRawTokenFromOlderClients(t *testing.T) {
	ctx := context.Background()
	m, _, kv := newManager(t)

	require.NoError(t, kv.Set(ctx, storage.KeyAuthToken, []byte("raw-token")))
	require.NoError(t, kv.Set(ctx, storage.KeyUser, []byte(`{"_id":"u1"}`)))

	sess, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "raw-token", sess.Token)
}

func TestCorruptUserIsNotAuthenticated(t *testing.T) {
	ctx := context.Background()
	m, _, kv := newManager(t)

	require.NoError(t, kv.Set(ctx, storage.KeyAuthToken, []byte(`"tok"`)))
	require.NoError(t, kv.Set(ctx, storage.KeyUser, []byte("{broken")))

	_, err := m.Current(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, bus, _ := newManager(t)

	var gotLogout []events.Event
	bus.Subscribe(events.TypeSessionLogout, func(e events.Event) {
		gotLogout = append(gotLogout, e)
	})

	require.NoError(t, m.SetCredentials(ctx, "tok", models.User{ID: "u1"}))
	require.NoError(t, m.Logout(ctx))

	_, err := m.Current(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	require.Len(t, gotLogout, 1)
	assert.Equal(t, "u1", gotLogout[0].UserID)
}
