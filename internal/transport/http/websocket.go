package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/singhnitish007/Clawbid.org/internal/domain"
	"github.com/singhnitish007/Clawbid.org/internal/notify"
)

const (
	wsWriteWait     = 10 * time.Second
	wsMaxMessage    = 4096
	wsMaxTopics     = 100
	wsReplyBuffer   = 16
	eventJoined     = "auction_joined"
	eventLeft       = "auction_left"
	eventSpectator  = "spectator_joined"
	eventError      = "error"
	msgJoinAuction  = "join_auction"
	msgLeaveAuction = "leave_auction"
)

// Broadcaster is the notifier surface used by the websocket endpoint.
type Broadcaster interface {
	Subscribe(buffer int) *notify.Subscription
	Publish(topic, event string, data any) int
	SubscriberCount(topic string) int
}

type WebSocketOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	PingPeriod      time.Duration
	AllowedOrigins  []string
}

type clientMessage struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId"`
}

type spectatorJoined struct {
	AuctionID      string `json:"auctionId"`
	SpectatorCount int    `json:"spectatorCount"`
}

// HandleWebSocket upgrades /ws connections. Clients join and leave auction
// topics with {"type":"join_auction","auctionId":...} and receive every
// event published on the topics they joined.
func HandleWebSocket(hub Broadcaster, opts WebSocketOptions) http.HandlerFunc {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader has already answered the request
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := &wsClient{
			conn:       conn,
			hub:        hub,
			sub:        hub.Subscribe(opts.SendBuffer),
			replies:    make(chan notify.Message, wsReplyBuffer),
			pingPeriod: opts.PingPeriod,
			logger:     zerolog.Ctx(r.Context()).With().Str("component", "websocket").Logger(),
		}
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			c.writePump()
		}()
		c.readPump()
		<-writerDone
	}
}

type wsClient struct {
	conn       *websocket.Conn
	hub        Broadcaster
	sub        *notify.Subscription
	replies    chan notify.Message
	pingPeriod time.Duration
	logger     zerolog.Logger
}

func (c *wsClient) readPump() {
	defer c.sub.Close()

	pongWait := 2 * c.pingPeriod
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	joined := make(map[string]struct{})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(eventError, map[string]string{"message": "invalid message"})
			continue
		}
		auctionID := strings.TrimSpace(msg.AuctionID)

		switch msg.Type {
		case msgJoinAuction:
			if auctionID == "" {
				c.reply(eventError, map[string]string{"message": "auctionId required"})
				continue
			}
			topic := domain.AuctionTopic(auctionID)
			if _, ok := joined[topic]; ok {
				c.reply(eventJoined, map[string]string{"auctionId": auctionID})
				continue
			}
			if len(joined) >= wsMaxTopics {
				c.reply(eventError, map[string]string{"message": "too many auctions joined"})
				continue
			}
			// announce to the spectators already present, then join
			others := c.hub.SubscriberCount(topic)
			c.hub.Publish(topic, eventSpectator, spectatorJoined{AuctionID: auctionID, SpectatorCount: others})
			c.sub.Join(topic)
			joined[topic] = struct{}{}
			c.reply(eventJoined, map[string]string{"auctionId": auctionID})
		case msgLeaveAuction:
			topic := domain.AuctionTopic(auctionID)
			c.sub.Leave(topic)
			delete(joined, topic)
			c.reply(eventLeft, map[string]string{"auctionId": auctionID})
		default:
			c.reply(eventError, map[string]string{"message": "unknown message type"})
		}
	}
}

// reply queues a direct message for this client only.
func (c *wsClient) reply(event string, data any) {
	select {
	case c.replies <- notify.Message{Event: event, Data: data, Timestamp: time.Now().UTC()}:
	default:
		c.logger.Warn().Str("event", event).Msg("reply buffer full, dropping message")
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.C():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(msg); err != nil {
				return
			}
		case msg := <-c.replies:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) write(msg notify.Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("event", msg.Event).Msg("websocket write failed")
		return err
	}
	return nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
