package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/modexam-backend/internal/engine"
	"github.com/stemsi/modexam-backend/internal/metrics"
	"github.com/stemsi/modexam-backend/internal/middleware"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/service"
	ws "github.com/stemsi/modexam-backend/internal/websocket"
)

const flushTimeout = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionRuntime is what a live exam stream needs from the session service.
type SessionRuntime interface {
	engine.Backend
	CreateSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, error)
	FetchSession(ctx context.Context, userID string, testID uuid.UUID) (*model.TestResult, error)
	SaveCheckpoint(ctx context.Context, session *model.TestResult) (bool, error)
	EnqueueCheckpoint(ctx context.Context, session *model.TestResult) error
}

// SessionLease keeps a session attached to a single connection.
type SessionLease interface {
	Acquire(ctx context.Context, sessionUID, owner string) (bool, error)
	Refresh(ctx context.Context, sessionUID, owner string) (bool, error)
	Release(ctx context.Context, sessionUID, owner string) error
}

// WSOptions tunes the exam stream.
type WSOptions struct {
	AllowedOrigins  []string
	Expiry          engine.ExpiryPolicy
	TickInterval    time.Duration
	CheckpointEvery int
	LeaseTTL        time.Duration
}

// WSHandler runs one exam engine per WebSocket connection.
type WSHandler struct {
	sessions     SessionRuntime
	lease        SessionLease
	opts         WSOptions
	refreshEvery int
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionRuntime, lease SessionLease, log zerolog.Logger, opts WSOptions) *WSHandler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 15
	}
	// Refresh about three times per lease period.
	refreshEvery := int(opts.LeaseTTL / 3 / opts.TickInterval)
	if refreshEvery < 1 {
		refreshEvery = 1
	}
	return &WSHandler{
		sessions:     sessions,
		lease:        lease,
		opts:         opts,
		refreshEvery: refreshEvery,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(opts.AllowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/student/tests/:test_id/stream?new=true|false
// Attaches the student to their session and streams engine state. With
// new=true a session is created when none is open.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	var session *model.TestResult
	if c.Query("new") == "true" {
		session, err = h.sessions.CreateSession(ctx, claims.UserID, testID)
	} else {
		session, err = h.sessions.FetchSession(ctx, claims.UserID, testID)
	}
	if err != nil {
		fail(c, err)
		return
	}

	sessionUID := session.UID.String()
	owner := uuid.NewString()
	ok, err := h.lease.Acquire(ctx, sessionUID, owner)
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		fail(c, service.ErrSessionInUse)
		return
	}

	wsLog := h.log.With().
		Str("user_id", claims.UserID).
		Str("test_id", testID.String()).
		Str("session_uid", sessionUID).
		Logger()

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsLog.Error().Err(err).Msg("WebSocket upgrade failed")
		h.releaseLease(wsLog, sessionUID, owner)
		return
	}
	conn := ws.Wrap(raw)

	h.serve(conn, wsLog, session, owner)
}

// serve owns the connection until the client leaves or the session ends.
func (h *WSHandler) serve(conn *ws.Conn, wsLog zerolog.Logger, session *model.TestResult, owner string) {
	sessionUID := session.UID.String()
	ctx, cancel := context.WithCancel(context.Background())

	eng := engine.New(h.sessions, session, engine.Options{Expiry: h.opts.Expiry})
	metrics.EngineAttached()
	wsLog.Info().Msg("Student connected")

	// detached is set once another connection owns the session; its progress
	// must not be overwritten by this one.
	var completed, detached atomic.Bool
	runDone := make(chan struct{})

	defer func() {
		cancel()
		eng.Stop()
		<-runDone
		if !completed.Load() && !detached.Load() {
			h.flush(wsLog, eng)
		}
		h.releaseLease(wsLog, sessionUID, owner)
		metrics.EngineDetached()
		conn.Close()
		wsLog.Info().Bool("completed", completed.Load()).Msg("Student disconnected")
	}()

	snap, err := eng.Materialize(ctx)
	h.send(conn, ws.EventState, snap, err)

	ticks := 0
	go func() {
		defer close(runDone)
		err := eng.Run(ctx, h.opts.TickInterval, func(snap engine.Snapshot) {
			ticks++
			if snap.Phase == engine.PhaseCompleted {
				completed.Store(true)
				conn.WriteTyped(ws.StateResponse{Event: ws.EventCompleted, Snapshot: snap})
				conn.Close()
				return
			}

			snap.Module = nil
			conn.WriteTyped(ws.StateResponse{Event: ws.EventTick, Snapshot: snap})

			if ticks%h.refreshEvery == 0 {
				held, err := h.lease.Refresh(ctx, sessionUID, owner)
				if err != nil {
					wsLog.Warn().Err(err).Msg("Lease refresh failed")
				} else if !held {
					wsLog.Warn().Msg("Lease lost, closing stream")
					detached.Store(true)
					conn.WriteError(response.ErrSessionInUse, "")
					conn.Close()
					return
				}
			}
			if ticks%h.opts.CheckpointEvery == 0 {
				if err := h.sessions.EnqueueCheckpoint(ctx, eng.Checkpoint()); err != nil {
					wsLog.Warn().Err(err).Msg("Checkpoint enqueue failed")
				}
			}
		})
		if err != nil {
			wsLog.Error().Err(err).Msg("Scheduler stopped")
		}
	}()

	for {
		var req ws.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if req.Action == ws.ActionPing {
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			continue
		}

		snap, err := h.dispatch(ctx, eng, req)
		if errors.Is(err, errBadRequest) {
			conn.WriteError(response.ErrInvalidPayload, err.Error())
			continue
		}
		if snap.Phase == engine.PhaseCompleted && err == nil {
			completed.Store(true)
			conn.WriteTyped(ws.StateResponse{Event: ws.EventCompleted, Snapshot: snap})
			return
		}
		if errors.Is(err, engine.ErrCompleted) {
			// Finished elsewhere; nothing on this connection can be saved.
			completed.Store(true)
			h.send(conn, ws.EventState, snap, err)
			return
		}
		h.send(conn, ws.EventState, snap, err)
	}
}

var errBadRequest = errors.New("bad request")

// dispatch applies one client action to the engine.
func (h *WSHandler) dispatch(ctx context.Context, eng *engine.Engine, req ws.Request) (engine.Snapshot, error) {
	needQ := func() (int, error) {
		if req.Q == nil {
			return 0, fmt.Errorf("%w: q is required for %s", errBadRequest, req.Action)
		}
		return *req.Q, nil
	}

	switch req.Action {
	case ws.ActionAnswer:
		q, err := needQ()
		if err != nil {
			return engine.Snapshot{}, err
		}
		return eng.SetAnswer(q, req.Value)
	case ws.ActionMark:
		q, err := needQ()
		if err != nil {
			return engine.Snapshot{}, err
		}
		return eng.ToggleMark(q)
	case ws.ActionJump:
		q, err := needQ()
		if err != nil {
			return engine.Snapshot{}, err
		}
		return eng.Jump(q)
	case ws.ActionNext:
		return eng.Next(ctx)
	case ws.ActionBack:
		return eng.Back()
	case ws.ActionAdvance:
		return eng.Advance(ctx)
	case ws.ActionRetry:
		return eng.Retry(ctx)
	default:
		return engine.Snapshot{}, fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action)
	}
}

// send writes a state event, or an error event carrying the snapshot.
func (h *WSHandler) send(conn *ws.Conn, event ws.Event, snap engine.Snapshot, err error) {
	if err == nil {
		conn.WriteTyped(ws.StateResponse{Event: event, Snapshot: snap})
		return
	}
	_, code := errorStatus(err)
	conn.WriteTyped(ws.ErrorResponse{
		Event:    ws.EventError,
		Code:     code,
		Error:    response.GetMessage(code),
		Snapshot: &snap,
	})
}

// flush synchronously saves in-step progress when the student leaves.
func (h *WSHandler) flush(wsLog zerolog.Logger, eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	applied, err := h.sessions.SaveCheckpoint(ctx, eng.Checkpoint())
	if err != nil {
		wsLog.Error().Err(err).Msg("Final checkpoint failed")
		return
	}
	wsLog.Debug().Bool("applied", applied).Msg("Final checkpoint")
}

func (h *WSHandler) releaseLease(wsLog zerolog.Logger, sessionUID, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := h.lease.Release(ctx, sessionUID, owner); err != nil {
		wsLog.Warn().Err(err).Msg("Lease release failed")
	}
}
