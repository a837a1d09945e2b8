package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traP-jp/ShoutWars-server/internal/v1/idgen"
	"github.com/traP-jp/ShoutWars-server/internal/v1/roomregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sessionregistry"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	rooms := roomregistry.New(10, time.Minute, time.Minute, nil)
	sessions := sessionregistry.New(nil)
	return New(rooms, sessions, nil)
}

func doRequest(t *testing.T, h gin.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	data, err := msgpack.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", contentTypeMsgpack)
	rec := httptest.NewRecorder()

	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	h(c)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), dst))
}

func TestCreateRoom_Success(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.CreateRoom, createRequest{
		Version: "v1",
		User:    userRef{Name: "alice"},
		Size:    2,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp createResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.UserID)
	assert.NotEmpty(t, resp.ID)
}

func TestCreateRoom_RejectsBadSize(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.CreateRoom, createRequest{
		Version: "v1",
		User:    userRef{Name: "alice"},
		Size:    5,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorBody
	decode(t, rec, &resp)
	assert.Contains(t, resp.Error, "Invalid room size")
}

func TestCreateRoom_RejectsEmptyName(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.CreateRoom, createRequest{
		Version: "v1",
		User:    userRef{Name: ""},
		Size:    2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRoom_Success(t *testing.T) {
	srv := newTestServer(t)
	createRec := doRequest(t, srv.CreateRoom, createRequest{Version: "v1", User: userRef{Name: "alice"}, Size: 2})
	var created createResponse
	decode(t, createRec, &created)

	rec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v1", ID: created.ID, User: userRef{Name: "bob"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp joinResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEqual(t, created.UserID, resp.UserID)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v1", ID: idgen.New(), User: userRef{Name: "bob"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinRoom_MalformedID(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v1", ID: "does-not-exist", User: userRef{Name: "bob"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRoom_VersionMismatch(t *testing.T) {
	srv := newTestServer(t)
	createRec := doRequest(t, srv.CreateRoom, createRequest{Version: "v1", User: userRef{Name: "alice"}, Size: 2})
	var created createResponse
	decode(t, createRec, &created)

	rec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v2", ID: created.ID, User: userRef{Name: "bob"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRoom_RequiresOwnerAndTwoUsers(t *testing.T) {
	srv := newTestServer(t)
	createRec := doRequest(t, srv.CreateRoom, createRequest{Version: "v1", User: userRef{Name: "alice"}, Size: 2})
	var created createResponse
	decode(t, createRec, &created)

	rec := doRequest(t, srv.StartRoom, startRequest{SessionID: created.SessionID})
	assert.Equal(t, http.StatusForbidden, rec.Code, "cannot start with only one user")

	joinRec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v1", ID: created.ID, User: userRef{Name: "bob"}})
	var joined joinResponse
	decode(t, joinRec, &joined)

	startRec := doRequest(t, srv.StartRoom, startRequest{SessionID: joined.SessionID})
	assert.Equal(t, http.StatusForbidden, startRec.Code, "non-owner cannot start")

	startRec2 := doRequest(t, srv.StartRoom, startRequest{SessionID: created.SessionID})
	assert.Equal(t, http.StatusOK, startRec2.Code)
}

func TestSync_UnknownSessionIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.Sync, syncRequest{SessionID: idgen.New()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSync_MalformedSessionID(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv.Sync, syncRequest{SessionID: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSync_TwoPlayerBarrier mirrors spec.md's two-player barrier scenario:
// A reports e1, B actions a1; A sees only B's action, B sees A's report
// plus its own action (actions are echoed to their author), and both
// top-level ids match.
func TestSync_TwoPlayerBarrier(t *testing.T) {
	srv := newTestServer(t)
	createRec := doRequest(t, srv.CreateRoom, createRequest{Version: "v1", User: userRef{Name: "alice"}, Size: 2})
	var created createResponse
	decode(t, createRec, &created)

	joinRec := doRequest(t, srv.JoinRoom, joinRequest{Version: "v1", ID: created.ID, User: userRef{Name: "bob"}})
	var joined joinResponse
	decode(t, joinRec, &joined)

	startRec := doRequest(t, srv.StartRoom, startRequest{SessionID: created.SessionID})
	require.Equal(t, http.StatusOK, startRec.Code)

	var aliceResult, bobResult syncResponse
	done := make(chan struct{}, 2)

	go func() {
		rec := doRequest(t, srv.Sync, syncRequest{
			SessionID: created.SessionID,
			Reports:   []wireEvent{{ID: "e1", Type: "x", Event: map[string]any{}}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &aliceResult)
		done <- struct{}{}
	}()
	go func() {
		rec := doRequest(t, srv.Sync, syncRequest{
			SessionID: joined.SessionID,
			Actions:   []wireEvent{{ID: "a1", Type: "y", Event: map[string]any{}}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &bobResult)
		done <- struct{}{}
	}()
	<-done
	<-done

	assert.Equal(t, aliceResult.ID, bobResult.ID, "both responses carry the same top-level id")

	assert.Len(t, aliceResult.Reports, 0, "A's own report is never echoed back")
	require.Len(t, aliceResult.Actions, 1)
	assert.Equal(t, "a1", aliceResult.Actions[0].ID)

	require.Len(t, bobResult.Reports, 1)
	assert.Equal(t, "e1", bobResult.Reports[0].ID)
	require.Len(t, bobResult.Actions, 1, "actions are echoed to everyone including their own author")
	assert.Equal(t, "a1", bobResult.Actions[0].ID)
}

func TestStatus_ReportsCountAndLimit(t *testing.T) {
	srv := newTestServer(t)
	doRequest(t, srv.CreateRoom, createRequest{Version: "v1", User: userRef{Name: "alice"}, Size: 2})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	srv.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.RoomCount)
	assert.Equal(t, 10, resp.RoomLimit)
}

func TestNotFound_ReturnsStructuredError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/bogus", nil)
	NotFound(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorBody
	decode(t, rec, &resp)
	assert.Contains(t, resp.Error, "Invalid API version")
}
