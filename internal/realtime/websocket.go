package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fruitai/outreach/internal/apperr"
	"github.com/fruitai/outreach/internal/logger"
	"github.com/fruitai/outreach/internal/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	actionTimeout  = 30 * time.Second
)

// ClientAction is a workflow decision sent by a client
type ClientAction struct {
	Kind           string         `json:"kind"`
	CampaignID     string         `json:"campaignId"`
	PauseID        string         `json:"pauseId,omitempty"`
	TemplateID     string         `json:"templateId,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Feedback       string         `json:"feedback,omitempty"`
}

// ActionHandler applies client actions. The result is sent back to the
// requesting client only.
type ActionHandler interface {
	HandleAction(ctx context.Context, action ClientAction) (any, error)
}

// ActionHandlerFunc adapts a function to ActionHandler
type ActionHandlerFunc func(ctx context.Context, action ClientAction) (any, error)

// HandleAction calls f
func (f ActionHandlerFunc) HandleAction(ctx context.Context, action ClientAction) (any, error) {
	return f(ctx, action)
}

type clientMessage struct {
	Type        string        `json:"type"`
	RequestID   string        `json:"requestId,omitempty"`
	CampaignID  string        `json:"campaignId,omitempty"`
	CampaignIDs []string      `json:"campaignIds,omitempty"`
	Action      *ClientAction `json:"action,omitempty"`
}

// ActionResult is the data of an action_result reply
type ActionResult struct {
	RequestID string       `json:"requestId,omitempty"`
	OK        bool         `json:"ok"`
	Result    any          `json:"result,omitempty"`
	Error     *ActionError `json:"error,omitempty"`
}

// ActionError describes a rejected action
type ActionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server upgrades HTTP requests to websocket clients of a Hub
type Server struct {
	hub      *Hub
	actions  ActionHandler
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer creates a websocket Server. allowedOrigins may contain "*".
func NewServer(hub *Hub, actions ActionHandler, allowedOrigins []string, log *logger.Logger) *Server {
	s := &Server{
		hub:     hub,
		actions: actions,
		log:     log.WithComponent("websocket"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// ServeHTTP upgrades the connection and serves the client until it disconnects
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, middleware.ResponseHeader(r.Context()))
	if err != nil {
		s.log.Debug().Err(err).Str("request_id", requestID).Msg("websocket upgrade failed")
		return
	}

	c := newClient(conn, s)
	connected := map[string]string{"clientId": c.id}
	if requestID != "" {
		connected["requestId"] = requestID
	}
	c.reply(Event{Type: TypeConnected, Data: connected})
	s.hub.Connect(c)

	s.log.Debug().
		Str("client_id", c.id).
		Str("request_id", requestID).
		Int("clients", s.hub.Clients()).
		Msg("client connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	c.readPump(r.Context())

	s.hub.Disconnect(c)
	c.Close()
	wg.Wait()

	s.log.Debug().Str("client_id", c.id).Msg("client disconnected")
}

// Client is one websocket connection registered with the hub
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	mu     sync.RWMutex
	filter map[string]struct{}
}

func newClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Deliver queues msg without blocking
func (c *Client) Deliver(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Wants reports whether the client subscribed to campaignID
func (c *Client) Wants(campaignID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[campaignID]
	return ok
}

func (c *Client) setFilter(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			c.filter[id] = struct{}{}
		}
	}
}

func (c *Client) reply(ev Event) {
	ev.Timestamp = time.Now().UTC()
	msg, err := json.Marshal(ev)
	if err != nil {
		c.server.log.Error().Err(err).Msg("failed to encode reply")
		return
	}
	c.Deliver(msg)
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.log.Debug().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(Event{Type: TypeError, Data: ActionError{Code: "invalid_message", Message: "Message is not valid JSON"}})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case "ping":
		c.reply(Event{Type: TypePong})
	case "request_status":
		for _, ev := range c.server.hub.Snapshot(msg.CampaignID) {
			c.reply(ev)
		}
	case "subscribe":
		ids := msg.CampaignIDs
		if msg.CampaignID != "" {
			ids = append(ids, msg.CampaignID)
		}
		c.setFilter(ids)
		c.reply(Event{Type: TypeSubscribed, Data: map[string][]string{"campaignIds": ids}})
	case "action":
		c.reply(Event{Type: TypeActionResult, CampaignID: campaignOf(msg.Action), Data: c.applyAction(ctx, msg)})
	default:
		c.reply(Event{Type: TypeError, Data: ActionError{Code: "unknown_message", Message: "Unknown message type: " + msg.Type}})
	}
}

func (c *Client) applyAction(ctx context.Context, msg clientMessage) ActionResult {
	res := ActionResult{RequestID: msg.RequestID}
	if msg.Action == nil || c.server.actions == nil {
		res.Error = &ActionError{Code: string(apperr.KindConfiguration), Message: "action is required"}
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	out, err := c.server.actions.HandleAction(ctx, *msg.Action)
	if err != nil {
		res.Error = &ActionError{Code: string(apperr.KindOf(err)), Message: apperr.MessageOf(err)}
		return res
	}
	res.OK = true
	res.Result = out
	return res
}

func campaignOf(a *ClientAction) string {
	if a == nil {
		return ""
	}
	return a.CampaignID
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
