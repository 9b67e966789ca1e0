package capture

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/crewcall/crewcall/internal/auth"
	"github.com/crewcall/crewcall/internal/observability"
)

// Server accepts one capture client over a websocket and publishes its
// observations to the feed. A newly authenticated client for the same
// connect code supersedes the previous connection.
type Server struct {
	feed        *Feed
	validator   auth.Validator
	connectCode string
	log         zerolog.Logger
	httpSrv     *http.Server
	upgrader    websocket.Upgrader
	startedAt   time.Time

	mu     sync.Mutex
	active *websocket.Conn
}

func NewServer(addr string, validator auth.Validator, connectCode string, feed *Feed, logger zerolog.Logger) *Server {
	s := &Server{
		feed:        feed,
		validator:   validator,
		connectCode: connectCode,
		log:         logger.With().Str("component", "capture").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startedAt: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(s.log))
	router.Use(observability.RequestMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.startedAt).String(),
			"component": "capture-ingest",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/feed", s.handleFeed)

	s.httpSrv = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("capture ingest listening")
	err := s.httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes the feed, which the lifecycle
// watcher treats as terminal.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.active != nil {
		_ = s.active.Close()
		s.active = nil
	}
	s.mu.Unlock()
	s.feed.Close()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleFeed(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := s.validator.Validate(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.adopt(conn)

	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("capture client connected")
	s.readLoop(conn)
}

// adopt installs the new connection, closing any superseded one.
func (s *Server) adopt(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.log.Info().Msg("superseding previous capture client")
		_ = s.active.Close()
	}
	s.active = conn
}

func (s *Server) release(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conn {
		s.active = nil
	}
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() {
		s.release(conn)
		_ = conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Msg("capture client read failed")
			} else {
				s.log.Info().Msg("capture client disconnected")
			}
			return
		}
		if env.ConnectCode != s.connectCode {
			s.log.Warn().Str("connect_code", env.ConnectCode).Msg("observation with wrong connect code dropped")
			continue
		}
		state, err := ParseState(env.State)
		if err != nil {
			s.log.Warn().Err(err).Msg("undecodable observation dropped")
			continue
		}
		observability.RecordCaptureState(state.Scene.String())
		s.feed.Publish(state)
	}
}
