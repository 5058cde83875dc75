package udp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

// TriggerServer is the HTTP admin port co-located with the bus.
type TriggerServer struct {
	bus      *Server
	http     *http.Server
	listener net.Listener
}

// NewTriggerServer creates the admin trigger port for the notification bus.
func NewTriggerServer(addr string, bus *Server) *TriggerServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	t := &TriggerServer{bus: bus}
	router.POST("/trigger", t.handleTrigger)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"endpoints": bus.EndpointCount(),
		})
	})

	t.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return t
}

func (t *TriggerServer) handleTrigger(c *gin.Context) {
	var notification models.Notification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid notification"))
		return
	}
	if notification.Type == "" {
		c.JSON(http.StatusBadRequest, models.Fail("type is required"))
		return
	}

	t.bus.Broadcast(notification)
	c.JSON(http.StatusOK, models.OK("notification broadcast", gin.H{
		"recipients": t.bus.EndpointCount(),
	}))
}

// Start binds the admin listener and serves in the background.
func (t *TriggerServer) Start() error {
	listener, err := net.Listen("tcp", t.http.Addr)
	if err != nil {
		return fmt.Errorf("admin trigger listen failed on %s: %w", t.http.Addr, err)
	}
	t.listener = listener
	logger.Infof("UDP admin trigger listening on %s", listener.Addr())

	go func() {
		if err := t.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Errorf("UDP admin trigger serve error: %v", err)
		}
	}()
	return nil
}

// Addr reports the bound admin address.
func (t *TriggerServer) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop shuts the admin listener down gracefully.
func (t *TriggerServer) Stop(ctx context.Context) error {
	return t.http.Shutdown(ctx)
}
