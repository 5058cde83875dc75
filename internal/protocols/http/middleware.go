// Package http implements the REST gateway: router, middleware and
// handlers over the domain services.
package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mangahub/internal/core"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

// Context keys set by the auth middleware.
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxEmail    = "email"
	ctxRole     = "role"
)

// bearerToken accepts the Authorization header or ?token=; the query
// form exists for EventSource and WebSocket clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

func setClaims(c *gin.Context, claims *models.TokenClaims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUsername, claims.Username)
	c.Set(ctxEmail, claims.Email)
	c.Set(ctxRole, claims.Role)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(auth core.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Fail("missing authorization token"))
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Fail("invalid or expired token"))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware populates claims when a valid token is present
// but lets anonymous requests through. Endpoints use the claims to
// tailor the response.
func OptionalAuthMiddleware(auth core.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := auth.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// AdminMiddleware gates the catalog write surface. Must run after
// AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != string(models.UserRoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.Fail("admin access required"))
			return
		}
		c.Next()
	}
}

// ipLimiter tracks one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	limit    rate.Limit
	burst    int
}

func newIPLimiter(perMinute int) *ipLimiter {
	l := &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
	go l.cleanup()
	return l
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.lastSeen[ip] = time.Now()
	return limiter.Allow()
}

func (l *ipLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for ip, seen := range l.lastSeen {
			if seen.Before(cutoff) {
				delete(l.limiters, ip)
				delete(l.lastSeen, ip)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimitMiddleware enforces a per-IP request budget.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := newIPLimiter(perMinute)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.Fail("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// BodySizeLimit caps request bodies.
func BodySizeLimit(maxMB int64) gin.HandlerFunc {
	if maxMB <= 0 {
		maxMB = 2
	}
	maxBytes := maxMB << 20
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// CORSMiddleware applies the configured allow-list.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// RequestLogger logs each request through the shared logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.HTTP(c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), int(time.Since(start).Milliseconds()))
	}
}

// respondError maps any error onto the REST envelope with the right
// status.
func respondError(c *gin.Context, err error) {
	app := models.AsAppError(err)
	c.JSON(app.HTTPStatus(), models.Fail(app.Message))
}
