package tcp

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

// TriggerServer is the HTTP admin port co-located with the bus. The
// gateway POSTs progress events here; the bus treats them exactly like a
// subscriber's write.
type TriggerServer struct {
	bus      *Server
	http     *http.Server
	listener net.Listener
}

// NewTriggerServer creates the admin trigger port for the progress bus.
func NewTriggerServer(addr string, bus *Server) *TriggerServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	t := &TriggerServer{bus: bus}
	router.POST("/trigger", t.handleTrigger)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"subscribers": bus.SubscriberCount(),
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
	var event models.ProgressEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid progress event"))
		return
	}
	if event.UserID == "" {
		c.JSON(http.StatusBadRequest, models.Fail("user_id is required"))
		return
	}

	t.bus.Broadcast(event)
	c.JSON(http.StatusOK, models.OK("event broadcast", gin.H{
		"receivers": t.bus.SubscriberCount(),
	}))
}

// Start binds the admin listener and serves in the background.
func (t *TriggerServer) Start() error {
	listener, err := net.Listen("tcp", t.http.Addr)
	if err != nil {
		return fmt.Errorf("admin trigger listen failed on %s: %w", t.http.Addr, err)
	}
	t.listener = listener
	logger.Infof("TCP admin trigger listening on %s", listener.Addr())

	go func() {
		if err := t.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Errorf("TCP admin trigger serve error: %v", err)
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
