package inmemory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo(t *testing.T) {
	ctx := context.Background()
	r := NewRepo(slog.Default())
	c1 := wsconn.New("c1", nil, wsconn.DefaultConfig())
	c2 := wsconn.New("c2", nil, wsconn.DefaultConfig())

	require.NoError(t, r.Add(ctx, c1))
	require.NoError(t, r.Add(ctx, c2))
	assert.ErrorIs(t, r.Add(ctx, c1), connection.ErrAlreadyExists)
	assert.Equal(t, 2, r.Count())

	got, err := r.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Same(t, c1, got)

	code, err := r.GetRoomCode(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, code)

	require.NoError(t, r.SetRoomCode(ctx, "c1", "ABC123"))
	code, err = r.GetRoomCode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	conns := r.GetMany(ctx, []string{"c2", "missing", "c1"})
	require.Len(t, conns, 2)
	assert.Equal(t, "c2", conns[0].ID())
	assert.Equal(t, "c1", conns[1].ID())

	require.NoError(t, r.Remove(ctx, "c1"))
	assert.ErrorIs(t, r.Remove(ctx, "c1"), connection.ErrNotFound)
	_, err = r.Get(ctx, "c1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.ErrorIs(t, r.SetRoomCode(ctx, "c1", "X"), connection.ErrNotFound)
	_, err = r.GetRoomCode(ctx, "c1")
	assert.ErrorIs(t, err, connection.ErrNotFound)
}
