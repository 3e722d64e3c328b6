// Package api serves the capture documents over HTTP and pushes new
// messages over WebSocket.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/query"
	"github.com/matheus3301/autoreader/internal/status"
	"go.uber.org/zap"
)

// WorkerStats reports ingestion counters. *ingest.Worker implements it.
type WorkerStats interface {
	Processed() int64
	Failed() int64
	Pending() int
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Transport    string    `json:"transport"`
	State        string    `json:"state"`
	StateSince   time.Time `json:"state_since"`
	UptimeMs     int64     `json:"uptime_ms"`
	MessageCount int       `json:"message_count"`
	ContactCount int       `json:"contact_count"`
	Pending      int       `json:"queue_pending"`
	Processed    int64     `json:"processed"`
	Failed       int64     `json:"failed"`
	BusDropped   int64     `json:"bus_dropped"`
}

// AttachmentResponse is the JSON form of one stored image.
type AttachmentResponse struct {
	ID     string `json:"id"`
	Base64 string `json:"base64"`
	Date   string `json:"date"`
	Sender any    `json:"sender"`
	Chat   any    `json:"chat"`
}

// Handler serves the read API.
type Handler struct {
	facade    *query.Facade
	machine   *status.Machine
	stats     WorkerStats
	bus       *bus.Bus
	transport string
	startedAt time.Time
	logger    *zap.Logger

	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a handler. stats may be nil.
func NewHandler(f *query.Facade, m *status.Machine, stats WorkerStats, b *bus.Bus, transport string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		facade:    f,
		machine:   m,
		stats:     stats,
		bus:       b,
		transport: transport,
		startedAt: time.Now(),
		logger:    logger,
		shutdown:  make(chan struct{}),
	}
}

// Close ends every open WebSocket session. http.Server.Shutdown does not
// track hijacked connections, so the server calls this on shutdown.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

// NewRouter registers every route. jwtSecret may be empty.
func NewRouter(h *Handler, jwtSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	authed := r.Group("/", RequireToken(jwtSecret))
	authed.GET("/status", h.getStatus)
	authed.GET("/messages", h.listMessages)
	authed.GET("/chats", h.listChats)
	authed.GET("/chats/:id/messages", h.chatMessages)
	authed.GET("/contacts", h.listContacts)
	authed.GET("/contacts/:id", h.getContact)
	authed.GET("/attachments/:id", h.getAttachment)
	authed.DELETE("/history", h.clearHistory)
	authed.GET("/ws", h.serveWebSocket)
	return r
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
	)
}

func (h *Handler) getStatus(c *gin.Context) {
	resp := StatusResponse{
		Transport:    h.transport,
		State:        string(h.machine.Current()),
		StateSince:   h.machine.Since(),
		UptimeMs:     time.Since(h.startedAt).Milliseconds(),
		MessageCount: len(h.facade.AllMessages()),
		ContactCount: len(h.facade.Contacts()),
	}
	if h.stats != nil {
		resp.Pending = h.stats.Pending()
		resp.Processed = h.stats.Processed()
		resp.Failed = h.stats.Failed()
	}
	if h.bus != nil {
		resp.BusDropped = h.bus.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listMessages(c *gin.Context) {
	if since, ok := c.GetQuery("since"); ok {
		c.JSON(http.StatusOK, h.facade.SessionMessages(since))
		return
	}
	c.JSON(http.StatusOK, h.facade.AllMessages())
}

func (h *Handler) listChats(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.Chats())
}

func (h *Handler) chatMessages(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.ChatMessages(c.Param("id")))
}

func (h *Handler) listContacts(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.Contacts())
}

func (h *Handler) getContact(c *gin.Context) {
	contact, ok := h.facade.Contact(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) getAttachment(c *gin.Context) {
	rec, ok := h.facade.Attachment(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	if c.Query("raw") == "1" {
		data, err := rec.Decode()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "attachment is not valid base64"})
			return
		}
		c.Data(http.StatusOK, http.DetectContentType(data), data)
		return
	}
	c.JSON(http.StatusOK, AttachmentResponse{
		ID:     rec.ID,
		Base64: rec.Base64,
		Date:   rec.Date,
		Sender: rec.Sender,
		Chat:   rec.Chat,
	})
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.facade.ClearHistory(); err != nil {
		h.logger.Error("history clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("history cleared")
	c.Status(http.StatusNoContent)
}
