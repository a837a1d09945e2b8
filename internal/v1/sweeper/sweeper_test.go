package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traP-jp/ShoutWars-server/internal/v1/room"
	"github.com/traP-jp/ShoutWars-server/internal/v1/roomregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sessionregistry"
	"go.uber.org/goleak"
)

func TestSweeperEvictsExpiredRoomAndOrphanedSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	rooms := roomregistry.New(10, time.Millisecond, time.Minute, nil)
	sessions := sessionregistry.New(nil)

	owner, err := room.NewUser("owner")
	require.Nil(t, err)
	r, appErr := rooms.Create("v1", owner, 2)
	require.Nil(t, appErr)
	sess := sessions.Create(r.ID, owner.ID)

	time.Sleep(5 * time.Millisecond) // let the lobby_lifetime elapse

	sw := New(rooms, sessions, 5*time.Millisecond, time.Hour, nil)
	sw.Start(context.Background())

	assert.Eventually(t, func() bool {
		return !rooms.Exists(r.ID)
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !sessions.Exists(sess.ID)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sw.Stop(context.Background()))
}

func TestSweeperStopIsIdempotentWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	sw := New(roomregistry.New(10, time.Minute, time.Minute, nil), sessionregistry.New(nil), time.Second, time.Second, nil)
	require.NoError(t, sw.Stop(context.Background()))
	require.NoError(t, sw.Stop(context.Background()))
}
