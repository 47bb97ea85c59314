package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4 * 1024
	maxSendChannelSize = 256
)

// Client одно websocket-соединение пользователя
type Client struct {
	ID     string
	UserID string

	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	send   chan []byte

	// под Hub.mu
	topics map[string]struct{}

	mu        sync.RWMutex
	isClosed  bool
	rateLimit *RateLimiter
}

// RateLimiter ограничивает частоту управляющих фреймов клиента
type RateLimiter struct {
	mu       sync.Mutex
	lastSent time.Time
	interval time.Duration
}

// NewRateLimiter создает лимитер с минимальным интервалом между фреймами
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		lastSent: time.Now().Add(-interval),
	}
}

func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSent) >= rl.interval {
		rl.lastSent = now
		return true
	}
	return false
}

// NewClient создает клиента для соединения пользователя
func NewClient(ctx context.Context, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(ctx)

	return &Client{
		ID:        uuid.NewString(),
		UserID:    userID,
		ctx:       ctx,
		cancel:    cancel,
		conn:      conn,
		send:      make(chan []byte, maxSendChannelSize),
		topics:    make(map[string]struct{}),
		rateLimit: NewRateLimiter(50 * time.Millisecond),
	}
}

func (c *Client) CheckRateLimit() bool {
	return c.rateLimit.Allow()
}

// ReadPump читает управляющие фреймы, пока соединение открыто
func (c *Client) ReadPump(handleIncoming func(*Client, InEvent), onPong func()) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		var ev InEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("client read error: %v", err)
			}
			return
		}
		handleIncoming(c, ev)
	}
}

// WritePump пишет фреймы из очереди и ping
func (c *Client) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return nil
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return err
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// SendJSON сериализует v и ставит в очередь
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("client marshal error: %v", err)
		return false
	}
	return c.SendRaw(data)
}

// SendRaw ставит данные в очередь без блокировки. Возвращает false,
// если клиент закрыт или очередь переполнена
func (c *Client) SendRaw(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close закрывает соединение. Повторный вызов безопасен
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return
	}

	c.isClosed = true
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}
