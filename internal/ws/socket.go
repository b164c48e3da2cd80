package ws

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/debatearena/server/internal/debate"
	"github.com/debatearena/server/internal/metrics"
)

// Inbound intent names.
const (
	IntentAuthenticate   = "authenticate"
	IntentCreateRoom     = "create-room"
	IntentJoinRoom       = "join-room"
	IntentJoinRanked     = "join-ranked-queue"
	IntentCancelRanked   = "cancel-ranked-queue"
	IntentSendMessage    = "send-message"
	IntentLeaveRoom      = "leave-room"
	IntentGetDebateState = "get-debate-state"
)

var (
	errUnauthenticated = errors.New("identify with a userId first")
	errRateLimited     = errors.New("slow down")
)

// Debates is the part of the debate service the gateway drives.
type Debates interface {
	SetEmitter(e debate.Emitter)
	CreateRoom(userID, username, connID, topic string) (debate.Snapshot, error)
	JoinRoom(roomID, userID, username, connID string) (debate.Side, error)
	JoinRanked(userID, username, connID string) error
	CancelRanked(userID string)
	SendMessage(roomID, userID, text string) (debate.Message, error)
	LeaveRoom(roomID, userID string) error
	GetState(roomID, userID string) (debate.Snapshot, error)
	Disconnect(userID, connID string)
}

// ConnCtx is attached to every connection once it identifies itself.
type ConnCtx struct {
	UserID   string
	Username string
	limiter  *rate.Limiter
}

// Intent is the union of every inbound payload. JSON field matching is
// case-insensitive, so both roomID and roomId are accepted.
type Intent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoomID   string `json:"roomID"`
	Topic    string `json:"topic"`
	Message  string `json:"message"`
}

type Options struct {
	SendRate  float64
	SendBurst int
}

// Server bridges Socket.IO connections and the debate service. It resolves
// the user ids events are addressed to into live connections.
type Server struct {
	svc  Debates
	opts Options

	mu     sync.RWMutex
	byUser map[string]map[string]socketio.Conn // userID -> connID -> Conn
}

func New(svc Debates, opts Options) *Server {
	if opts.SendRate <= 0 {
		opts.SendRate = 1
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 5
	}
	srv := &Server{svc: svc, opts: opts, byUser: make(map[string]map[string]socketio.Conn)}
	svc.SetEmitter(srv)
	return srv
}

// Emit delivers ev to every connection of every addressed user.
func (srv *Server) Emit(ev debate.Event) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	for _, userID := range ev.To {
		for _, c := range srv.byUser[userID] {
			c.Emit(ev.Name, ev.Payload)
		}
	}
}

// Connections reports how many connections are bound to userID.
func (srv *Server) Connections(userID string) int {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	return len(srv.byUser[userID])
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", srv.onConnect)
	io.OnEvent("/", IntentAuthenticate, srv.onAuthenticate)
	io.OnEvent("/", IntentCreateRoom, srv.onCreateRoom)
	io.OnEvent("/", IntentJoinRoom, srv.onJoinRoom)
	io.OnEvent("/", IntentJoinRanked, srv.onJoinRanked)
	io.OnEvent("/", IntentCancelRanked, srv.onCancelRanked)
	io.OnEvent("/", IntentSendMessage, srv.onSendMessage)
	io.OnEvent("/", IntentLeaveRoom, srv.onLeaveRoom)
	io.OnEvent("/", IntentGetDebateState, srv.onGetDebateState)
	io.OnError("/", func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", srv.onDisconnect)

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	return io
}

func (srv *Server) onConnect(s socketio.Conn) error {
	s.SetContext(&ConnCtx{})
	metrics.SocketConnections.Inc()
	log.Info().Str("sid", s.ID()).Msg("socket connected")
	return nil
}

func (srv *Server) onAuthenticate(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentAuthenticate).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, "", err)
	}
	return map[string]any{"ok": true, "userId": ctx.UserID}
}

func (srv *Server) onCreateRoom(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentCreateRoom).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, "", err)
	}
	snap, err := srv.svc.CreateRoom(ctx.UserID, ctx.Username, s.ID(), in.Topic)
	if err != nil {
		return srv.fail(s, "", err)
	}
	log.Info().Str("sid", s.ID()).Str("room", snap.ID).Str("user", ctx.UserID).Msg(IntentCreateRoom)
	return map[string]any{"roomId": snap.ID, "topic": snap.Topic, "side": debate.SideFor}
}

func (srv *Server) onJoinRoom(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentJoinRoom).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	side, err := srv.svc.JoinRoom(in.RoomID, ctx.UserID, ctx.Username, s.ID())
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	log.Info().Str("sid", s.ID()).Str("room", in.RoomID).Str("user", ctx.UserID).Str("side", string(side)).Msg(IntentJoinRoom)
	return map[string]any{"roomId": in.RoomID, "side": side}
}

func (srv *Server) onJoinRanked(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentJoinRanked).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, "", err)
	}
	if err := srv.svc.JoinRanked(ctx.UserID, ctx.Username, s.ID()); err != nil {
		return srv.fail(s, "", err)
	}
	return map[string]any{"ok": true}
}

func (srv *Server) onCancelRanked(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentCancelRanked).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, "", err)
	}
	srv.svc.CancelRanked(ctx.UserID)
	return map[string]any{"ok": true}
}

func (srv *Server) onSendMessage(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentSendMessage).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	if !ctx.limiter.Allow() {
		metrics.RateLimitHits.WithLabelValues(IntentSendMessage).Inc()
		return srv.fail(s, in.RoomID, errRateLimited)
	}
	msg, err := srv.svc.SendMessage(in.RoomID, ctx.UserID, in.Message)
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	return map[string]any{"messageId": msg.ID}
}

func (srv *Server) onLeaveRoom(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentLeaveRoom).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	if err := srv.svc.LeaveRoom(in.RoomID, ctx.UserID); err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	log.Info().Str("sid", s.ID()).Str("room", in.RoomID).Str("user", ctx.UserID).Msg(IntentLeaveRoom)
	return map[string]any{"ok": true}
}

func (srv *Server) onGetDebateState(s socketio.Conn, in Intent) map[string]any {
	metrics.SocketEvents.WithLabelValues(IntentGetDebateState).Inc()
	ctx, err := srv.identify(s, in)
	if err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	if _, err := srv.svc.GetState(in.RoomID, ctx.UserID); err != nil {
		return srv.fail(s, in.RoomID, err)
	}
	return map[string]any{"ok": true}
}

func (srv *Server) onDisconnect(s socketio.Conn, reason string) {
	metrics.SocketConnections.Dec()
	ctx, ok := s.Context().(*ConnCtx)
	if ok && ctx.UserID != "" {
		srv.unbind(ctx.UserID, s.ID())
		srv.svc.Disconnect(ctx.UserID, s.ID())
	}
	log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
}

// identify returns the connection's identity, binding in.UserID to the
// connection when given. A connection speaks for one user at a time:
// switching identity is a disconnect of the previous one.
func (srv *Server) identify(s socketio.Conn, in Intent) (*ConnCtx, error) {
	ctx, _ := s.Context().(*ConnCtx)
	if ctx == nil {
		ctx = &ConnCtx{}
		s.SetContext(ctx)
	}
	if in.UserID != "" && in.UserID != ctx.UserID {
		if prev := ctx.UserID; prev != "" {
			srv.unbind(prev, s.ID())
			srv.svc.Disconnect(prev, s.ID())
			log.Info().Str("sid", s.ID()).Str("from", prev).Str("to", in.UserID).Msg("connection switched identity")
			ctx.Username = ""
		}
		ctx.UserID = in.UserID
		ctx.limiter = rate.NewLimiter(rate.Limit(srv.opts.SendRate), srv.opts.SendBurst)
		srv.bind(ctx.UserID, s)
	}
	if in.Username != "" {
		ctx.Username = in.Username
	}
	if ctx.UserID == "" {
		return nil, errUnauthenticated
	}
	if ctx.Username == "" {
		ctx.Username = ctx.UserID
	}
	return ctx, nil
}

func (srv *Server) bind(userID string, c socketio.Conn) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.byUser[userID] == nil {
		srv.byUser[userID] = make(map[string]socketio.Conn)
	}
	srv.byUser[userID][c.ID()] = c
}

func (srv *Server) unbind(userID, connID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.byUser[userID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(srv.byUser, userID)
		}
	}
}

// fail reports err to the caller as an event and as the ack.
func (srv *Server) fail(s socketio.Conn, roomID string, err error) map[string]any {
	code := debate.Code(err)
	event := debate.EventError
	switch {
	case errors.Is(err, debate.ErrRoomNotFound):
		event = debate.EventRoomNotFound
	case errors.Is(err, debate.ErrRoomFull):
		event = debate.EventRoomFull
	case errors.Is(err, errUnauthenticated):
		code = "unauthenticated"
	case errors.Is(err, errRateLimited):
		code = "rate_limited"
	}
	log.Debug().Str("sid", s.ID()).Str("room", roomID).Str("code", code).Msg("intent rejected")
	s.Emit(event, debate.ErrorPayload{V: debate.PayloadVersion, Code: code, Message: err.Error(), RoomID: roomID})
	return map[string]any{"error": err.Error(), "code": code}
}
