package ws

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"canteen-menu-service/internal/auth"
	"canteen-menu-service/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// Server streams selection changes to editors of a booking so that a
// second editor learns its loaded copy is stale before saving.
type Server struct {
	bookings  store.BookingStore
	logger    *zap.Logger
	jwtSecret string
	heartbeat time.Duration

	mu   sync.RWMutex
	subs map[int64]map[*client]struct{}
}

func New(bookings store.BookingStore, logger *zap.Logger, jwtSecret string, heartbeat time.Duration) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Server{
		bookings:  bookings,
		logger:    logger,
		jwtSecret: jwtSecret,
		heartbeat: heartbeat,
		subs:      make(map[int64]map[*client]struct{}),
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) subscribe(bookingID int64, c *client) (unsubscribe func()) {
	s.mu.Lock()
	if s.subs[bookingID] == nil {
		s.subs[bookingID] = make(map[*client]struct{})
	}
	s.subs[bookingID][c] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.remove(bookingID, c)
		s.mu.Unlock()
	}
}

// remove expects s.mu to be held.
func (s *Server) remove(bookingID int64, c *client) {
	clients := s.subs[bookingID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(s.subs, bookingID)
	}
}

func (s *Server) Subscribers(bookingID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[bookingID])
}

// BookingUpdated sends message to every subscriber of bookingID and drops
// clients whose write fails.
func (s *Server) BookingUpdated(bookingID int64, message any) {
	s.mu.RLock()
	clientsMap := s.subs[bookingID]
	clients := make([]*client, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			s.mu.Lock()
			s.remove(bookingID, c)
			s.mu.Unlock()
		}
	}
}

// BookingWS serves GET /ws/bookings/{bookingId}. The token comes from the
// "token" query parameter or an Authorization header.
func (s *Server) BookingWS(w http.ResponseWriter, r *http.Request) {
	bookingID, err := strconv.ParseInt(chi.URLParam(r, "bookingId"), 10, 64)
	if err != nil || bookingID <= 0 {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.ParseBearerToken(r.Header.Get("Authorization"))
	}
	claims, err := auth.VerifyAccessToken(token, s.jwtSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	ctx := r.Context()
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		message := "booking unavailable"
		if errors.Is(err, store.ErrNotFound) {
			message = "booking not found"
		}
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": message})
		return
	}
	if !claims.IsAdmin() && booking.CustomerID != claims.UserID {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "forbidden"})
		return
	}

	c := &client{conn: conn}
	unsubscribe := s.subscribe(bookingID, c)
	defer unsubscribe()

	_ = c.writeJSON(map[string]any{
		"type":      "selection.state",
		"bookingId": booking.ID,
		"version":   booking.Version,
		"menuPrice": booking.MenuPrice,
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				s.logger.Debug("websocket ping failed", zap.Int64("bookingId", bookingID), zap.Error(err))
				return
			}
		}
	}
}
