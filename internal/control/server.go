// Package control is the admin plane: it owns the rate-limit preset
// documents in etcd that the gateways watch.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/provisia/warden/internal/config"
	"github.com/provisia/warden/internal/limiter"
)

type Server struct {
	config     *config.Config
	logger     *slog.Logger
	etcd       *clientv3.Client
	httpServer *http.Server
}

// PresetDocument is the etcd representation of a rate-limit preset.
type PresetDocument struct {
	Name         string        `json:"name"`
	Requests     int64         `json:"requests"`
	Window       time.Duration `json:"window"`
	Strategy     string        `json:"strategy"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Created      time.Time     `json:"created"`
	Updated      time.Time     `json:"updated"`
}

// Config converts the document into a limiter config. The strategy
// name must be one of the known strategies.
func (d PresetDocument) Config() (limiter.Config, error) {
	strategy, err := limiter.ParseStrategy(d.Strategy)
	if err != nil {
		return limiter.Config{}, err
	}
	return limiter.Config{
		Requests:     d.Requests,
		Window:       d.Window,
		Strategy:     strategy,
		ErrorMessage: d.ErrorMessage,
	}, nil
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Etcd.Endpoints,
		DialTimeout: cfg.Etcd.DialTimeout,
		Username:    cfg.Etcd.Username,
		Password:    cfg.Etcd.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to etcd: %w", err)
	}

	return &Server{
		config: cfg,
		logger: logger,
		etcd:   etcdClient,
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote_addr", c.ClientIP(),
		)
	})

	router.GET("/health", s.healthHandler)

	api := router.Group("/api/v1")
	{
		api.POST("/presets", s.createPreset)
		api.GET("/presets/:name", s.getPreset)
		api.PUT("/presets/:name", s.updatePreset)
		api.DELETE("/presets/:name", s.deletePreset)
		api.GET("/presets", s.listPresets)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Control.Address,
		Handler:      router,
		ReadTimeout:  s.config.Control.ReadTimeout,
		WriteTimeout: s.config.Control.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("Control plane server started", "address", s.config.Control.Address)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down control plane server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
	}

	if s.etcd != nil {
		return s.etcd.Close()
	}

	return nil
}

func (s *Server) presetKey(name string) string {
	return s.config.Etcd.PresetPrefix + name
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	_, err := s.etcd.Status(ctx, s.config.Etcd.Endpoints[0])
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "etcd connectivity issue",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "warden-control",
		"version":   s.config.Observability.ServiceVersion,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) createPreset(c *gin.Context) {
	var doc PresetDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preset name is required"})
		return
	}
	if doc.Strategy == "" {
		doc.Strategy = limiter.FixedWindow.String()
	}
	if _, err := doc.Config(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc.Created = time.Now().UTC()
	doc.Updated = doc.Created

	if err := s.putPreset(c.Request.Context(), doc); err != nil {
		s.logger.Error("Failed to store preset", "preset", doc.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store preset"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (s *Server) getPreset(c *gin.Context) {
	name := c.Param("name")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp, err := s.etcd.Get(ctx, s.presetKey(name))
	if err != nil {
		s.logger.Error("Failed to get preset", "preset", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve preset"})
		return
	}

	if len(resp.Kvs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "preset not found"})
		return
	}

	var doc PresetDocument
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse preset"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (s *Server) updatePreset(c *gin.Context) {
	name := c.Param("name")

	var updates PresetDocument
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp, err := s.etcd.Get(ctx, s.presetKey(name))
	if err != nil {
		s.logger.Error("Failed to get preset", "preset", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve preset"})
		return
	}

	if len(resp.Kvs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "preset not found"})
		return
	}

	var doc PresetDocument
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse preset"})
		return
	}

	if updates.Requests > 0 {
		doc.Requests = updates.Requests
	}
	if updates.Window > 0 {
		doc.Window = updates.Window
	}
	if updates.Strategy != "" {
		doc.Strategy = updates.Strategy
	}
	if updates.ErrorMessage != "" {
		doc.ErrorMessage = updates.ErrorMessage
	}
	if _, err := doc.Config(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc.Updated = time.Now().UTC()

	if err := s.putPreset(ctx, doc); err != nil {
		s.logger.Error("Failed to update preset", "preset", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preset"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (s *Server) deletePreset(c *gin.Context) {
	name := c.Param("name")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	_, err := s.etcd.Delete(ctx, s.presetKey(name))
	if err != nil {
		s.logger.Error("Failed to delete preset", "preset", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete preset"})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func (s *Server) listPresets(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp, err := s.etcd.Get(ctx, s.config.Etcd.PresetPrefix, clientv3.WithPrefix())
	if err != nil {
		s.logger.Error("Failed to list presets", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list presets"})
		return
	}

	presets := make([]PresetDocument, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var doc PresetDocument
		if err := json.Unmarshal(kv.Value, &doc); err != nil {
			s.logger.Warn("Failed to parse preset", "key", string(kv.Key), "error", err)
			continue
		}
		presets = append(presets, doc)
	}

	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"count":   len(presets),
	})
}

func (s *Server) putPreset(ctx context.Context, doc PresetDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = s.etcd.Put(ctx, s.presetKey(doc.Name), string(data))
	return err
}
