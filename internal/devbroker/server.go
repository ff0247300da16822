// Package devbroker is a small stand-in for the portal's notification
// backend: JWT-authenticated REST endpoints for the inbox plus a WebSocket
// endpoint with per-user rooms. It is meant for local runs and tests.
package devbroker

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nhle/portal-inbox/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Config configures a Server.
type Config struct {
	// Secret signs and verifies HS256 session tokens.
	Secret string

	// AllowedOrigins lists CORS origins. Empty allows all.
	AllowedOrigins []string
}

// Server is the development broker.
type Server struct {
	router   *gin.Engine
	secret   []byte
	mailbox  *Mailbox
	hub      *Hub
	validate *validator.Validate
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer builds a broker with an empty mailbox.
func NewServer(cfg Config) *Server {
	secret := cfg.Secret
	if secret == "" {
		secret = "dev-secret-key"
	}

	s := &Server{
		router:   gin.New(),
		secret:   []byte(secret),
		mailbox:  NewMailbox(),
		hub:      NewHub(),
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware(cfg.AllowedOrigins))
	s.setupRoutes()
	return s
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// Handler returns the HTTP handler, for httptest or a custom server.
func (s *Server) Handler() http.Handler { return s.router }

// Hub exposes the socket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Mailbox exposes the notification store.
func (s *Server) Mailbox() *Mailbox { return s.mailbox }

// Run listens on addr until the process exits.
func (s *Server) Run(addr string) error {
	log.Printf("devbroker: listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	auth := jwtAuth(s.secret)

	s.router.GET("/ws", auth, s.handleSocket())

	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleList())
			notifications.PUT("/read-all", s.handleMarkAllRead())
			notifications.PUT("/:id/read", s.handleMarkRead())
			notifications.DELETE("/:id", s.handleDelete())
		}

		internal := api.Group("/internal")
		{
			internal.POST("/send", s.handleSend())
		}
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.Clients()})
	})
}

// SendRequest creates a notification for a recipient and pushes it to the
// recipient's room.
type SendRequest struct {
	UserID    string        `json:"userId" validate:"required"`
	Type      string        `json:"type" validate:"omitempty,oneof=announcement job comment application_submitted application_advisor_action application_coordinator_action other"`
	RelatedID string        `json:"relatedId"`
	Sender    *model.Sender `json:"sender"`
	Title     string        `json:"title" validate:"required,max=200"`
	Message   string        `json:"message" validate:"required,max=2000"`
}

// Send validates req, stores the notification and publishes it.
func (s *Server) Send(req SendRequest) (model.Notification, error) {
	if err := s.validate.Struct(req); err != nil {
		return model.Notification{}, fmt.Errorf("invalid send request: %w", err)
	}

	n := model.Notification{
		ID:        uuid.New().String(),
		Type:      model.ParseNotificationType(req.Type),
		RelatedID: req.RelatedID,
		Sender:    req.Sender,
		Title:     req.Title,
		Message:   req.Message,
		CreatedAt: s.now().UTC(),
	}
	s.mailbox.Add(req.UserID, n)
	delivered := s.hub.Publish(req.UserID, n)
	log.Printf("devbroker: sent %s to %s (%d sockets)", n.ID, req.UserID, delivered)
	return n, nil
}

func (s *Server) handleSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("devbroker: upgrade: %v", err)
			return
		}
		s.hub.serve(conn, userID(c))
	}
}

func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)

		items, unread, total := s.mailbox.List(userID(c), page, limit)
		c.JSON(http.StatusOK, gin.H{
			"notifications": items,
			"unread":        unread,
			"total":         total,
		})
	}
}

func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.mailbox.MarkRead(userID(c), c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mailbox.MarkAllRead(userID(c))
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.mailbox.Delete(userID(c), c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}

		n, err := s.Send(req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, n)
	}
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
