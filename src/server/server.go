package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quant-observer/src/interfaces"
	"quant-observer/src/logger"
	"quant-observer/src/models"
	"quant-observer/src/monitoring"
	"quant-observer/src/pipeline"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

var _ interfaces.IDataExchanger = (*APIServer)(nil)

// -----------------------------------------------------------------------------
// APIServer serves the dashboard queries over REST and pushes every
// processed tick to websocket clients.
// -----------------------------------------------------------------------------

type APIServer struct {
	Config     *models.MConfig
	ConfigPath string
	Pipeline   *pipeline.Pipeline
	Metrics    *monitoring.Metrics
	Logger     *logger.Logger

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket hub, owned by runHub
	clients     map[*Client]struct{}
	broadcast   chan interface{}
	direct      chan directMessage
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
	connections atomic.Int64

	// serialises PUT /api/config
	cfgMutex sync.Mutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, p *pipeline.Pipeline, metrics *monitoring.Metrics, log *logger.Logger) *APIServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:   cfg,
		Pipeline: p,
		Metrics:  metrics,
		Logger:   log,
		engine:   gin.New(),
		clients:  make(map[*Client]struct{}),
		// Buffered so a burst of ticks never blocks the pipeline
		broadcast:  make(chan interface{}, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.setupRoutes()

	p.AddObserver(s.OnProcessed)
	go s.runHub()
	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request at debug level through the component logger.
func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.PUT("/config", s.putConfig)
	api.GET("/metrics", s.getMetrics)
	api.GET("/stats", s.getStats)

	api.GET("/ticks", s.getTicksRange)
	api.GET("/ticks/latest", s.getLatestTicks)
	api.GET("/ticks/price-range", s.getPriceRange)
	api.GET("/ticks/export", s.exportTicks)

	api.GET("/analytics/series", s.getSeries)
	api.GET("/analytics/returns", s.getReturnDistribution)
	api.GET("/analytics/candles", s.getCandles)

	api.GET("/alerts", s.getAlerts)
	api.DELETE("/alerts", s.clearAlerts)
	api.GET("/alerts/state", s.getAlertStates)

	if s.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for httptest.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start blocks serving HTTP until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.httpServer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// Connections is the number of connected websocket clients.
func (s *APIServer) Connections() int {
	return int(s.connections.Load())
}
