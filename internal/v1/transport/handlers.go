package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/traP-jp/ShoutWars-server/internal/v1/apperror"
	"github.com/traP-jp/ShoutWars-server/internal/v1/bus"
	"github.com/traP-jp/ShoutWars-server/internal/v1/idgen"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
	"github.com/traP-jp/ShoutWars-server/internal/v1/room"
	"github.com/traP-jp/ShoutWars-server/internal/v1/roomregistry"
	"github.com/traP-jp/ShoutWars-server/internal/v1/sessionregistry"
	"github.com/vmihailenco/msgpack/v5"
)

// Server wires the core registries to the gin routes. Its methods are the
// only place that translates between wire types and the room package.
type Server struct {
	Rooms    *roomregistry.Registry
	Sessions *sessionregistry.Registry
	Bus      *bus.Service // nil is a valid, fully functional value
}

func New(rooms *roomregistry.Registry, sessions *sessionregistry.Registry, eventBus *bus.Service) *Server {
	return &Server{Rooms: rooms, Sessions: sessions, Bus: eventBus}
}

// writeError translates an *apperror.Error into the `{error: message}`
// body with the matching status (spec.md §7).
func writeError(c *gin.Context, err *apperror.Error) {
	respondMsgpack(c, err.StatusCode(), errorBody{Error: err.Message})
}

func validateName(name string) *apperror.Error {
	if len(name) < 1 || len(name) > 32 {
		return apperror.BadRequestf("Invalid user name: %q. Must be between 1 and 32 characters.", name)
	}
	return nil
}

func validateVersion(version string) *apperror.Error {
	if len(version) < 1 || len(version) > 32 {
		return apperror.BadRequestf("Invalid room version: %q. Must be between 1 and 32 characters.", version)
	}
	return nil
}

func validateSize(size int) *apperror.Error {
	if size < 2 || size > 4 {
		return apperror.BadRequestf("Invalid room size: %d. Must be between 2 and 4.", size)
	}
	return nil
}

func validateID(id string) *apperror.Error {
	if !idgen.Valid(id) {
		return apperror.BadRequestf("Malformed id.")
	}
	return nil
}

// CreateRoom handles POST /v1/room/create.
func (s *Server) CreateRoom(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, apperror.BadRequestf("Malformed request body."))
		return
	}
	var req createRequest
	if err := bindMsgpack(raw, &req); err != nil {
		writeError(c, apperror.BadRequestf("Malformed MessagePack body."))
		return
	}

	if appErr := validateVersion(req.Version); appErr != nil {
		metrics.RoomOperations.WithLabelValues("create", "bad_request").Inc()
		writeError(c, appErr)
		return
	}
	if appErr := validateName(req.User.Name); appErr != nil {
		metrics.RoomOperations.WithLabelValues("create", "bad_request").Inc()
		writeError(c, appErr)
		return
	}
	if appErr := validateSize(req.Size); appErr != nil {
		metrics.RoomOperations.WithLabelValues("create", "bad_request").Inc()
		writeError(c, appErr)
		return
	}

	owner, appErr := room.NewUser(req.User.Name)
	if appErr != nil {
		writeError(c, appErr)
		return
	}

	r, appErr := s.Rooms.Create(req.Version, owner, req.Size)
	if appErr != nil {
		metrics.RoomOperations.WithLabelValues("create", "rejected").Inc()
		writeError(c, appErr)
		return
	}

	sess := s.Sessions.Create(r.ID, owner.ID)
	s.Bus.Publish(c.Request.Context(), r.ID, bus.EventRoomCreated, map[string]string{"owner_id": owner.ID})

	metrics.RoomOperations.WithLabelValues("create", "ok").Inc()
	respondMsgpack(c, http.StatusOK, createResponse{
		SessionID: sess.ID,
		UserID:    owner.ID,
		ID:        r.ID,
	})
}

// JoinRoom handles POST /v1/room/join.
func (s *Server) JoinRoom(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, apperror.BadRequestf("Malformed request body."))
		return
	}
	var req joinRequest
	if err := bindMsgpack(raw, &req); err != nil {
		writeError(c, apperror.BadRequestf("Malformed MessagePack body."))
		return
	}

	if appErr := validateName(req.User.Name); appErr != nil {
		writeError(c, appErr)
		return
	}
	if appErr := validateID(req.ID); appErr != nil {
		writeError(c, appErr)
		return
	}

	r, appErr := s.Rooms.Get(req.ID)
	if appErr != nil {
		metrics.RoomOperations.WithLabelValues("join", "not_found").Inc()
		writeError(c, appErr)
		return
	}

	newUser, appErr := room.NewUser(req.User.Name)
	if appErr != nil {
		writeError(c, appErr)
		return
	}

	if appErr := r.Join(req.Version, newUser); appErr != nil {
		metrics.RoomOperations.WithLabelValues("join", "rejected").Inc()
		writeError(c, appErr)
		return
	}

	sess := s.Sessions.Create(r.ID, newUser.ID)
	metrics.RoomOperations.WithLabelValues("join", "ok").Inc()
	respondMsgpack(c, http.StatusOK, joinResponse{
		SessionID: sess.ID,
		UserID:    newUser.ID,
		RoomInfo:  r.GetInfo(),
	})
}

// StartRoom handles POST /v1/room/start.
func (s *Server) StartRoom(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, apperror.BadRequestf("Malformed request body."))
		return
	}
	var req startRequest
	if err := bindMsgpack(raw, &req); err != nil {
		writeError(c, apperror.BadRequestf("Malformed MessagePack body."))
		return
	}

	if appErr := validateID(req.SessionID); appErr != nil {
		writeError(c, appErr)
		return
	}

	sess, appErr := s.Sessions.Get(req.SessionID)
	if appErr != nil {
		writeError(c, appErr)
		return
	}
	r, appErr := s.Rooms.Get(sess.RoomID)
	if appErr != nil {
		writeError(c, appErr)
		return
	}
	owner, appErr := r.GetOwner()
	if appErr != nil {
		writeError(c, appErr)
		return
	}
	if owner.ID != sess.UserID {
		writeError(c, apperror.Forbiddenf("Only the room owner may start the game."))
		return
	}
	if appErr := r.StartGame(); appErr != nil {
		metrics.RoomOperations.WithLabelValues("start", "rejected").Inc()
		writeError(c, appErr)
		return
	}

	s.Bus.Publish(c.Request.Context(), r.ID, bus.EventGameStarted, nil)
	metrics.RoomOperations.WithLabelValues("start", "ok").Inc()
	respondMsgpack(c, http.StatusOK, gin.H{})
}

// Sync handles POST /v1/room/sync.
func (s *Server) Sync(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		writeError(c, apperror.BadRequestf("Malformed request body."))
		return
	}

	var req syncRequest
	if err := bindMsgpack(raw, &req); err != nil {
		writeError(c, apperror.BadRequestf("Malformed MessagePack body."))
		return
	}

	var rawMap map[string]msgpack.RawMessage
	_ = msgpack.Unmarshal(raw, &rawMap)
	_, updateInfo := rawMap["room_info"]

	if appErr := validateID(req.SessionID); appErr != nil {
		metrics.SyncRequests.WithLabelValues("bad_request").Inc()
		writeError(c, appErr)
		return
	}

	sess, appErr := s.Sessions.Get(req.SessionID)
	if appErr != nil {
		metrics.SyncRequests.WithLabelValues("unauthorized").Inc()
		writeError(c, appErr)
		return
	}
	r, appErr := s.Rooms.Get(sess.RoomID)
	if appErr != nil {
		metrics.SyncRequests.WithLabelValues("not_found").Inc()
		writeError(c, appErr)
		return
	}

	reports := toEvents(req.Reports)
	actions := toEvents(req.Actions)

	result, appErr := r.Sync(sess.UserID, reports, actions, req.RoomInfo, updateInfo)
	if appErr != nil {
		metrics.SyncRequests.WithLabelValues(statusLabel(appErr)).Inc()
		writeError(c, appErr)
		return
	}

	metrics.SyncRequests.WithLabelValues("ok").Inc()
	respondMsgpack(c, http.StatusOK, syncResponse{
		ID:        result.ID,
		Reports:   toWireEvents(result.Reports),
		Actions:   toWireEvents(result.Actions),
		RoomUsers: toUserInfos(result.RoomUsers),
	})
}

// Status handles GET /v1/status.
func (s *Server) Status(c *gin.Context) {
	respondMsgpack(c, http.StatusOK, statusResponse{
		RoomCount: s.Rooms.Count(),
		RoomLimit: s.Rooms.GetLimit(),
	})
}

// NotFound handles every unmatched route (spec.md §6: "anything else").
func NotFound(c *gin.Context) {
	respondMsgpack(c, http.StatusNotFound, errorBody{Error: "Invalid API version. Use /v1."})
}

func toEvents(in []wireEvent) []room.Event {
	out := make([]room.Event, len(in))
	for i, e := range in {
		out[i] = room.Event{ID: e.ID, Type: e.Type, Data: e.Event}
	}
	return out
}

func toWireEvents(in []room.DeliveredEvent) []wireEvent {
	out := make([]wireEvent, len(in))
	for i, e := range in {
		out[i] = wireEvent{ID: e.ID, From: e.From, Type: e.Type, Event: e.Data, SyncID: e.SyncID}
	}
	return out
}

func toUserInfos(in []room.Info) []userInfo {
	out := make([]userInfo, len(in))
	for i, u := range in {
		out[i] = userInfo{ID: u.ID, Name: u.Name}
	}
	return out
}

func statusLabel(err *apperror.Error) string {
	switch err.Kind {
	case apperror.TooManyRequests:
		return "rate_limited"
	case apperror.Forbidden:
		return "rejected"
	default:
		return "error"
	}
}
