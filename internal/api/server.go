package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/audit"
	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/gateway"
	intnet "github.com/bellhop-project/bellhop/internal/network"
	"github.com/bellhop-project/bellhop/internal/util"
)

// Version is the reported application version.
const Version = "1.0.0"

// Server is the admin REST API server.
type Server struct {
	cfg   *config.Config
	gw    *gateway.Gateway
	store *audit.Store

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates an admin API server over a running gateway. store
// may be nil when the audit log is disabled.
func NewServer(cfg *config.Config, gw *gateway.Gateway, store *audit.Store) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:   cfg,
		gw:    gw,
		store: store,
	}
}

// Start binds the API listener and serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	gw := s.cfg.GetGateway()
	addr := net.JoinHostPort(gw.Host, strconv.Itoa(gw.APIPort))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	security := s.cfg.GetApplicationData().Security
	if security.TLSEnabled {
		certFile := security.TLSCertFile
		keyFile := security.TLSKeyFile
		if certFile == "" || keyFile == "" {
			certFile = filepath.Join(config.DefaultConfigDir, "api-cert.pem")
			keyFile = filepath.Join(config.DefaultConfigDir, "api-key.pem")
		}
		if _, statErr := os.Stat(certFile); statErr != nil {
			if err := util.GenerateSelfSignedCert(certFile, keyFile); err != nil {
				return fmt.Errorf("failed to generate API TLS certificate: %w", err)
			}
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("failed to load API TLS certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}

	// SO_REUSEADDR for immediate rebinding after restart
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("admin API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if security.TLSEnabled {
		err = s.httpServer.Serve(tls.NewListener(ln, s.httpServer.TLSConfig))
	} else {
		err = s.httpServer.Serve(ln)
	}

	if err != nil && err != http.ErrServerClosed {
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

	security := s.cfg.GetApplicationData().Security
	allowedOrigins := security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(security.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleVersion)
		public.GET("/sysinfo", s.handleSysInfo)
	}

	monitor := router.Group("/api/monitor")
	{
		monitor.GET("/sessions", s.handleSessions)
		monitor.GET("/inventory", s.handleInventory)
		monitor.GET("/partitions", s.handlePartitions)
		monitor.GET("/pending", s.handlePending)
		monitor.GET("/audit/logins", s.handleAuditLogins)
		monitor.GET("/audit/requests", s.handleAuditRequests)
	}

	configure := router.Group("/api/configure")
	{
		configure.GET("/config", s.handleGetConfig)
		configure.POST("/app_data", s.handleSetAppData)
	}

	return router
}
