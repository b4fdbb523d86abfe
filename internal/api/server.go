package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/config"
	"github.com/pokeproto-project/pokebattle/internal/db"
	intnet "github.com/pokeproto-project/pokebattle/internal/network"
	"github.com/pokeproto-project/pokebattle/internal/util"
)

// defaultRateLimitRPS bounds unauthenticated status polling per client.
const defaultRateLimitRPS = 20

// Server is the read-only HTTP status server.
type Server struct {
	cfg       config.APIConfig
	cache     *SnapshotCache
	battleLog *db.BattleLog

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates the status server. battleLog may be nil when history
// recording is disabled.
func NewServer(cfg config.APIConfig, logLevel string, cache *SnapshotCache, battleLog *db.BattleLog) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:       cfg,
		cache:     cache,
		battleLog: battleLog,
	}
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR so a restarted session rebinds immediately.
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("status API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(defaultRateLimitRPS)
	router.Use(rateLimiter.Middleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/status", s.handleStatus)
		api.GET("/turns", s.handleTurns)
		api.GET("/chat", s.handleChat)
		api.GET("/history", s.handleHistory)
		api.GET("/history/:id/turns", s.handleHistoryTurns)
		api.GET("/system", s.handleSystem)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.cache.Current()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleTurns(c *gin.Context) {
	snap := s.cache.Current()
	c.JSON(http.StatusOK, gin.H{
		"turn_count": snap.TurnCount,
		"turns":      snap.Turns,
	})
}

func (s *Server) handleChat(c *gin.Context) {
	snap := s.cache.Current()
	c.JSON(http.StatusOK, gin.H{"chat": snap.Chat})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.battleLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "battle log disabled"})
		return
	}
	battles, err := s.battleLog.RecentBattles(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

func (s *Server) handleHistoryTurns(c *gin.Context) {
	if s.battleLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "battle log disabled"})
		return
	}
	var battleID int64
	if _, err := fmt.Sscan(c.Param("id"), &battleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid battle id"})
		return
	}
	turns, err := s.battleLog.BattleTurns(battleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle_id": battleID, "turns": turns})
}

func (s *Server) handleSystem(c *gin.Context) {
	cpuUsage, err := util.GetCPUUsage()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read CPU usage")
		cpuUsage = -1
	}
	memUsage, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cpu_percent": cpuUsage,
		"memory":      memUsage,
	})
}
