package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicecleaner/logger"
	"voicecleaner/model"
)

// EventType 事件类型
type EventType string

const (
	EventEntry       EventType = "entry"        // 单个文件状态变化
	EventRunFinished EventType = "run_finished" // 批次结束
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Event is one message pushed to websocket subscribers.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"runId"`
	Entry     *model.ReportEntry `json:"entry,omitempty"`
	Summary   *model.RunSummary  `json:"summary,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// Client is one websocket subscriber. An empty RunID receives every run.
type Client struct {
	Hub   *EventHub
	Conn  *websocket.Conn
	Send  chan []byte
	RunID string
}

// EventHub fans run events out to websocket clients.
type EventHub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewEventHub 创建事件 Hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("websocket client registered", logger.String("run", client.RunID))

		case client := <-h.unregister:
			h.removeClient(client)

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *EventHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Register adds a client; it is a no-op once the hub is stopped.
func (h *EventHub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *EventHub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for delivery. Events are dropped when the queue is full.
func (h *EventHub) Broadcast(ev *Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	select {
	case h.broadcast <- ev:
	default:
		logger.Warn("event queue full, dropping event", logger.String("runId", ev.RunID))
	}
}

// RecordListener adapts the hub to pipeline report listeners.
func (h *EventHub) RecordListener(runID string, entry model.ReportEntry) {
	e := entry
	h.Broadcast(&Event{Type: EventEntry, RunID: runID, Entry: &e})
}

// Name implements pipeline.ReportSink.
func (h *EventHub) Name() string {
	return "websocket"
}

// Publish implements pipeline.ReportSink by announcing the finished run.
func (h *EventHub) Publish(_ context.Context, summary model.RunSummary) error {
	s := summary
	h.Broadcast(&Event{Type: EventRunFinished, RunID: summary.RunID, Summary: &s})
	return nil
}

func (h *EventHub) deliver(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to encode event", logger.ErrorField(err))
		return
	}

	// 复制客户端列表以避免长时间持有锁
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.RunID != "" && c.RunID != ev.RunID {
			continue
		}
		select {
		case c.Send <- data:
		default:
			// 发送缓冲区满，移除客户端
			h.removeClient(c)
		}
	}
}

func (h *EventHub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
}

func (h *EventHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
}

// ReadPump drains client frames so pongs and close frames are handled.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
