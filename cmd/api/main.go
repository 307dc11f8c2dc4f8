package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatelog/internal/auth"
	"gatelog/internal/config"
	"gatelog/internal/gate"
	"gatelog/internal/httpmiddleware"
	"gatelog/internal/identity"
	"gatelog/internal/ledger"
	"gatelog/internal/metrics"
	"gatelog/internal/queue"
	"gatelog/internal/resolve"
	"gatelog/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var (
		db  *store.DB
		ids identity.Store
		led ledger.Store
	)
	if cfg.StoreBackend == "memory" {
		log.Println("using in-memory store backend")
		ids = identity.NewMemory()
		led = ledger.NewMemory()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		ids = identity.NewRepository(db.Client)
		led = ledger.NewRepository(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "gatelog:scans")
	}

	m := metrics.New()
	gateSvc := gate.NewService(ids, led, m)
	resolver := resolve.NewService(ids, led, m)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil || cfg.StoreBackend == "memory"
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Gate terminals register once and use the returned token for scans.
	r.POST("/api/terminals/register", func(c *gin.Context) {
		var req struct {
			TerminalID string `json:"terminal_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.TerminalID, "terminal", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// Read paths for dashboards and master-data tooling.
	r.GET("/api/log_entry", func(c *gin.Context) {
		entries, err := led.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	r.GET("/api/log_entry/open", func(c *gin.Context) {
		entries, err := led.ListOpen(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	r.GET("/api/lookup/:regNo", func(c *gin.Context) {
		id, variant, err := ids.Lookup(c.Request.Context(), c.Param("regNo"))
		if errors.Is(err, identity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not registered"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"regNo":      id.RegNo,
			"name":       id.Name,
			"department": id.Department,
			"userType":   variant,
		})
	})

	r.GET("/api/students_data", listIdentities(ids, identity.Student))
	r.GET("/api/staff_data", listIdentities(ids, identity.Staff))

	authGroup := r.Group("/api", auth.TerminalAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			RegNo string `json:"regNo" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := gateSvc.Scan(c.Request.Context(), strings.TrimSpace(req.RegNo), time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if res.Direction == gate.In && res.Entry.UserType == ledger.Unknown {
			if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeUnknownScan, Body: []byte(res.Entry.RegNo)}); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		}

		c.JSON(http.StatusOK, res)
	})

	authGroup.POST("/register-unknown", func(c *gin.Context) {
		var req struct {
			RegNo      string `json:"regNo" binding:"required"`
			Name       string `json:"name" binding:"required"`
			Department string `json:"department"`
			UserType   string `json:"userType"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		variant := identity.Variant(strings.ToUpper(req.UserType))
		if variant != identity.Student && variant != identity.Staff {
			variant = identity.Classify(req.RegNo)
		}

		n, err := resolver.RegisterAndResolve(c.Request.Context(), identity.Identity{
			RegNo:      req.RegNo,
			Name:       req.Name,
			Department: req.Department,
		}, variant)
		var verr *resolve.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "resolvedRows": n})
	})

	authGroup.POST("/sync-unknown", func(c *gin.Context) {
		count, err := resolver.SweepUnresolved(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"resolvedCount": count})
	})

	authGroup.PUT("/log_entry/:id/checkout", func(c *gin.Context) {
		entry, err := gateSvc.CloseEntry(c.Request.Context(), c.Param("id"), time.Now().UTC())
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		case errors.Is(err, ledger.ErrAlreadyClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "entry already closed"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, entry)
		}
	})

	authGroup.PUT("/log_entry/checkout-all", func(c *gin.Context) {
		n, err := gateSvc.CloseAllOpen(c.Request.Context(), time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"closedCount": n})
	})

	authGroup.POST("/students_data", upsertIdentity(ids, identity.Student))
	authGroup.POST("/staff_data", upsertIdentity(ids, identity.Staff))

	authGroup.POST("/bulk-delete", func(c *gin.Context) {
		var req struct {
			RegNos []string `json:"regNos" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := ids.DeleteMany(c.Request.Context(), req.RegNos)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deletedCount": n})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func listIdentities(ids identity.Store, variant identity.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ids.List(c.Request.Context(), variant)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func upsertIdentity(ids identity.Store, variant identity.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.Identity
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.RegNo == "" || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "regNo and name required"})
			return
		}
		if err := ids.Upsert(c.Request.Context(), req, variant); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
