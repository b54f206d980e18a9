// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the settlement engine over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luxfi/samizdat/pkg/analytics"
	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/metric"
	"github.com/luxfi/samizdat/pkg/settlement"
)

const (
	// CallerHeader carries the hex wallet ID of the authenticated caller.
	// The daemon trusts it; an authenticating proxy must set it.
	CallerHeader    = "X-Samizdat-Caller"
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
)

// Config configures the router.
type Config struct {
	CORSOrigins []string
	Mode        string
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine  *settlement.Engine
	tracker *analytics.Tracker
	hub     *Hub
	log     log.Logger
	metrics *metric.Metrics
	router  *gin.Engine
}

// NewServer builds the router. tracker, hub and metrics may be nil.
func NewServer(cfg Config, engine *settlement.Engine, tracker *analytics.Tracker, hub *Hub, logger log.Logger, metrics *metric.Metrics) *Server {
	if logger == nil {
		logger = log.NoOp()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s := &Server{
		engine:  engine,
		tracker: tracker,
		hub:     hub,
		log:     logger,
		metrics: metrics,
	}
	s.router = s.setupRouter(cfg)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", CallerHeader, RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	if s.hub != nil {
		router.GET("/ws", gin.WrapH(s.hub))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/proofs", s.submitProof)

		v1.POST("/ads", s.createAd)
		v1.GET("/ads", s.listAds)
		v1.GET("/ads/:id", s.getAd)
		v1.POST("/ads/:id/fund", s.fundAd)
		v1.PUT("/ads/:id/active", s.setAdActive)
		v1.PATCH("/ads/:id", s.updateAd)
		v1.POST("/ads/:id/close", s.closeAd)

		v1.POST("/screens", s.createScreen)
		v1.GET("/screens/:id", s.getScreen)
		v1.PUT("/screens/:id/active", s.setScreenActive)
		v1.PATCH("/screens/:id", s.updateScreen)

		v1.GET("/wallets/:id/balance", s.getBalance)
		v1.GET("/publishers/:id", s.getPublisher)
		v1.GET("/tags", s.listTags)

		v1.GET("/stats", s.stats)
		v1.GET("/stats/ads/:id", s.adStats)
		v1.GET("/stats/screens/:id", s.screenStats)
		v1.GET("/events", s.recentEvents)
	}
	return router
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.RequestsProcessed.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Inc()
		}
		s.log.Debug("request",
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", status),
			log.String("requestID", c.GetString(requestIDKey)),
			log.Int64("latencyMicros", time.Since(start).Microseconds()),
		)
	}
}
