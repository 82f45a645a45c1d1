package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/config"
	"github.com/thereayou/interview-rooms/internal/database"
	"github.com/thereayou/interview-rooms/internal/database/memory"
	"github.com/thereayou/interview-rooms/internal/handlers"
	"github.com/thereayou/interview-rooms/internal/middleware"
	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/services"
	ws "github.com/thereayou/interview-rooms/internal/websocket"
	"github.com/thereayou/interview-rooms/internal/worker"
	"github.com/thereayou/interview-rooms/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg        *config.Config
	Router     *gin.Engine
	HTTP       *http.Server
	DB         *database.Database
	Redis      *redis.Client
	Hub        *ws.Hub
	Relay      *ws.RedisRelay
	Presence   *services.PresenceService
	Sockets    *handlers.WebSocketHandler
	Worker     *worker.WorkerServer
	JWTManager *auth.JWTManager
}

func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	store, err := s.openStore()
	if err != nil {
		return nil, err
	}

	if cfg.HasRedis() {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		s.Redis = rdb
		s.Relay = ws.NewRedisRelay(rdb, cfg.InstanceID)
	} else {
		logrus.Warn("REDIS_URL is empty: token blacklist, cross-instance relay and asynq sweep are disabled")
	}

	if cfg.JWTSecret != "" {
		s.JWTManager = auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	} else {
		logrus.Warn("JWT_SECRET is empty: member joins are disabled")
	}

	s.Hub = ws.NewHub()
	opts := []services.Option{services.WithIdleTimeout(cfg.SessionIdleTimeout)}
	if s.Relay != nil {
		opts = append(opts, services.WithRelay(s.Relay))
	}
	s.Presence = services.NewPresenceService(store, s.Hub, opts...)

	if cfg.HasRedis() && cfg.SweepEnabled() {
		s.Worker, err = worker.NewWorkerServer(cfg.RedisURL, s.Presence, cfg.SweepInterval)
		if err != nil {
			return nil, err
		}
	}

	gin.SetMode(cfg.GinMode)
	roomH := handlers.NewRoomHandler(s.Presence)
	wsH := handlers.NewWebSocketHandler(s.Hub, s.Presence, handlers.NewMessageHandler(s.Presence))
	s.Sockets = wsH

	s.Router = gin.Default()
	APIEndpoints(s.Router, roomH, wsH, middleware.OptionalAuth(s.JWTManager, s.Redis))

	s.HTTP = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.Router,
	}
	return s, nil
}

func (s *Server) openStore() (services.Store, error) {
	switch s.cfg.DBDriver {
	case config.DriverMemory:
		store := memory.NewStore()
		seedDemoRoom(store)
		return store, nil
	default:
		s.DB = &database.Database{}
		if err := s.DB.Connect(s.cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("postgres connect failed: %w", err)
		}
		return s.DB, nil
	}
}

// Run блокирует до отмены ctx, затем останавливает компоненты в обратном порядке
func (s *Server) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if s.Relay != nil {
		go func() {
			if err := s.Relay.Run(bgCtx, s.Presence); err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).Error("presence relay stopped")
			}
		}()
	}

	switch {
	case s.Worker != nil:
		if err := s.Worker.Start(); err != nil {
			return err
		}
		defer s.Worker.Shutdown()
	case s.cfg.SweepEnabled():
		go worker.RunTicker(bgCtx, s.Presence, s.cfg.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.HTTP.Addr).Info("server starting")
		if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server run error: %w", err)
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Сначала перестаем принимать запросы, затем закрываем сокеты и ждем записи их сессий
	if err := s.HTTP.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server forced to shutdown")
	}
	if payload, err := ws.Encode(ws.NewSessionEnded(ws.ReasonClosed)); err == nil {
		s.Hub.Shutdown(payload)
	}
	if err := s.Sockets.Wait(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("sockets did not close before shutdown timeout")
	}
	stopBackground()

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close redis")
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
	}
	logrus.Info("server exited gracefully")
	return nil
}

// seedDemoRoom в памяти нет данных, поэтому для локального запуска создаем одну открытую комнату
func seedDemoRoom(store *memory.Store) {
	workspace := &models.Workspace{Name: "Demo"}
	store.AddWorkspace(workspace)

	room := &models.Room{
		WorkspaceID:        workspace.ID,
		Name:               "Demo interview",
		AllowAnonymousJoin: true,
		AllowAnonymousView: true,
	}
	store.AddRoom(room)

	logrus.WithField("room_id", room.ID).Info("memory store seeded with demo room")
}
