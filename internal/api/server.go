// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/zpl-printer/internal/command"
	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/parser"
	"github.com/thereceipt/zpl-printer/internal/printer"
	"github.com/thereceipt/zpl-printer/internal/zpl"
	"go.uber.org/zap"
)

// maxRenderBody caps POST /render bodies
const maxRenderBody = 16 << 20

// Server is the API server
type Server struct {
	router   *gin.Engine
	printer  *printer.Server
	cache    *labelcache.Cache
	config   *config.Store
	hub      *notify.Hub
	executor *command.Executor
	upgrader websocket.Upgrader
	log      *zap.Logger
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(p *printer.Server, cache *labelcache.Cache, store *config.Store, hub *notify.Hub, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = zap.NewNop()
	}

	// gin's default logger writes to stdout, which belongs to the TUI
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logMiddleware(log))
	router.Use(corsMiddleware())

	server := &Server{
		router:   router,
		printer:  p,
		cache:    cache,
		config:   store,
		hub:      hub,
		executor: command.NewExecutor(p, cache, store, hub),
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)
	s.router.DELETE("/jobs", s.handleClearJobs)

	s.router.GET("/labels", s.handleGetLabels)
	s.router.GET("/label/:id", s.handleGetLabel)
	s.router.DELETE("/label/:id", s.handleDeleteLabel)

	s.router.GET("/settings", s.handleGetSettings)
	s.router.PUT("/settings", s.handlePutSettings)

	s.router.POST("/printer/start", s.handleStart)
	s.router.POST("/printer/stop", s.handleStop)
	s.router.POST("/render", s.handleRender)

	s.router.POST("/command", s.handleCommand)

	s.router.GET("/ws", s.handleWebSocket)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(200, s.printer.Status())
}

func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(200, gin.H{"jobs": s.printer.Jobs().All()})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.printer.Jobs().Get(c.Param("id"))
	if job == nil {
		c.JSON(404, gin.H{"error": "job not found"})
		return
	}
	c.JSON(200, job)
}

func (s *Server) handleClearJobs(c *gin.Context) {
	n := s.printer.Jobs().ClearFinished()
	c.JSON(200, gin.H{"success": true, "cleared": n})
}

func (s *Server) handleGetLabels(c *gin.Context) {
	entries, err := s.cache.List()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"labels": entries})
}

// handleGetLabel returns the PNG of a stored label
func (s *Server) handleGetLabel(c *gin.Context) {
	data, err := s.cache.Image(c.Param("id"))
	if errors.Is(err, labelcache.ErrNotFound) {
		c.JSON(404, gin.H{"error": "label not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.Data(200, "image/png", data)
}

func (s *Server) handleDeleteLabel(c *gin.Context) {
	id := c.Param("id")
	err := s.cache.Delete(id)
	if errors.Is(err, labelcache.ErrNotFound) {
		c.JSON(404, gin.H{"error": "label not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	s.hub.Publish(notify.New(notify.EventLabelDeleted, map[string]interface{}{"label_id": id}))
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(200, s.config.Get())
}

// handlePutSettings replaces the whole settings document
func (s *Server) handlePutSettings(c *gin.Context) {
	req := s.config.Get()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid settings: " + err.Error()})
		return
	}

	updated, err := s.executor.UpdateSettings(func(cfg *config.Config) error {
		*cfg = req
		return nil
	})
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, updated)
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.printer.Start(); err != nil {
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true, "address": s.printer.Addr().String()})
}

func (s *Server) handleStop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.printer.Stop(ctx); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// handleRender renders the request body and returns one label as PNG. Nothing
// is stored. ?index=n selects the label when the body holds several formats.
func (s *Server) handleRender(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(400, gin.H{"error": "label data is required"})
		return
	}
	if len(body) > maxRenderBody {
		c.JSON(413, gin.H{"error": "label data too large"})
		return
	}

	labels, warnings, err := s.printer.RenderOnce(c.Request.Context(), body)
	switch {
	case errors.Is(err, printer.ErrNoLabels):
		c.JSON(422, gin.H{"error": err.Error(), "warnings": warningStrings(warnings)})
		return
	case errors.Is(err, zpl.ErrMalformedCommand):
		c.JSON(400, gin.H{"error": err.Error()})
		return
	case errors.Is(err, printer.ErrResourceExhausted):
		c.JSON(503, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 || index >= len(labels) {
		c.JSON(400, gin.H{"error": "label index out of range", "labels": len(labels)})
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, labels[index].Image, imaging.PNG); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Label-Count", strconv.Itoa(len(labels)))
	c.Header("X-Label-Warnings", strconv.Itoa(len(warnings)))
	c.Data(200, "image/png", buf.Bytes())
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(req.Command)

	if result.Success {
		response := gin.H{
			"success": true,
		}
		if result.Message != "" {
			response["message"] = result.Message
		}
		for k, v := range result.Data {
			response[k] = v
		}
		c.JSON(200, response)
	} else {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
	}
}

// Run serves until Shutdown
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("api listening", zap.String("address", addr))

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func warningStrings(warnings []parser.Warning) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Error()
	}
	return out
}

func logMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
