// Package monitoring 提供预测事件的实时推送
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType 消息类型
type MessageType string

const (
	PredictionMade MessageType = "prediction"
	ModelReloaded  MessageType = "model_reloaded"
	Heartbeat      MessageType = "heartbeat"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 64
)

// Message 推送消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Feed WebSocket中心，向所有连接的客户端广播消息
type Feed struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64
	seq        atomic.Uint64
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	stopOnce   sync.Once
}

// NewFeed 创建WebSocket中心
func NewFeed(allowedOrigins []string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Run 运行中心循环，直到ctx结束
func (f *Feed) Run(ctx context.Context) error {
	defer f.stopOnce.Do(func() { close(f.done) })
	for {
		select {
		case c := <-f.register:
			f.clients[c] = true
			f.count.Store(int64(len(f.clients)))
			f.logger.Debug("feed client connected", zap.String("client", c.id), zap.Int("total", len(f.clients)))

		case c := <-f.unregister:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			f.count.Store(int64(len(f.clients)))
			f.logger.Debug("feed client disconnected", zap.String("client", c.id), zap.Int("total", len(f.clients)))

		case message := <-f.broadcast:
			for c := range f.clients {
				select {
				case c.send <- message:
				default:
					// 慢客户端直接断开
					close(c.send)
					delete(f.clients, c)
				}
			}
			f.count.Store(int64(len(f.clients)))

		case <-ctx.Done():
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			f.count.Store(0)
			return nil
		}
	}
}

// ClientCount 当前连接数
func (f *Feed) ClientCount() int {
	return int(f.count.Load())
}

// Broadcast 广播消息；队列已满时丢弃
func (f *Feed) Broadcast(msgType MessageType, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}
	message, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
		ID:        fmt.Sprintf("%s-%d", msgType, f.seq.Add(1)),
	})
	if err != nil {
		return err
	}
	select {
	case f.broadcast <- message:
		return nil
	default:
		f.logger.Warn("feed broadcast queue is full, dropping message", zap.String("type", string(msgType)))
		return nil
	}
}

// HandleWebSocket 处理WebSocket连接
func (f *Feed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   fmt.Sprintf("client-%d", f.seq.Add(1)),
	}
	select {
	case f.register <- c:
	case <-f.done:
		conn.Close()
		return
	}

	go f.writePump(c)
	go f.readPump(c)
}

func (f *Feed) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				f.logger.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理控制帧；客户端不需要发送业务消息
func (f *Feed) readPump(c *client) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Debug("websocket closed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
