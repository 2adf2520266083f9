// Package events pushes master-save notifications to websocket subscribers of a project.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minisite/logger"
	"minisite/model"

	"github.com/gorilla/websocket"
)

// EventType 事件类型
type EventType string

const (
	EventSnapshotSaved EventType = "snapshot_saved"
	EventPing          EventType = "ping"
	EventPong          EventType = "pong"
)

const (
	sendBuffer   = 16
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Event 推送给订阅者的消息
type Event struct {
	Type             EventType     `json:"type"`
	ProjectID        string        `json:"projectId,omitempty"`
	SnapshotKey      string        `json:"snapshotKey,omitempty"`
	LastMasterSaveAt string        `json:"lastMasterSaveAt,omitempty"`
	Section          model.Section `json:"section,omitempty"`
	Timestamp        int64         `json:"timestamp"`
}

// Client 订阅某个项目的 websocket 连接
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	ProjectID string

	// pong 只由 ReadPump 写入，Hub 从不关闭它
	pong chan []byte
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, projectID string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		ProjectID: projectID,
		pong:      make(chan []byte, 1),
	}
}

type broadcastMessage struct {
	projectID string
	message   []byte
}

// Hub 项目订阅管理中心
type Hub struct {
	// 项目 -> 客户端集合
	projects map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		projects:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToProject(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub，可以重复调用
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.projects[client.ProjectID] == nil {
		h.projects[client.ProjectID] = make(map[*Client]bool)
	}
	h.projects[client.ProjectID][client] = true

	logger.Info("event subscriber registered",
		logger.String("projectId", client.ProjectID),
		logger.Int("subscribers", len(h.projects[client.ProjectID])))
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.projects[client.ProjectID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.projects, client.ProjectID)
	}

	logger.Info("event subscriber unregistered", logger.String("projectId", client.ProjectID))
}

func (h *Hub) broadcastToProject(msg *broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.projects[msg.projectID] {
		select {
		case client.Send <- msg.message:
		default:
			// 发送缓冲区满，断开慢客户端
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.projects {
		for client := range clients {
			close(client.Send)
		}
	}
	h.projects = make(map[string]map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish 向项目的所有订阅者广播事件
func (h *Hub) Publish(projectID string, ev *Event) error {
	ev.ProjectID = projectID
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &broadcastMessage{projectID: projectID, message: data}:
	case <-h.done:
	}
	return nil
}

// SnapshotSaved broadcasts a snapshot_saved event for the new latest pointer.
func (h *Hub) SnapshotSaved(ctx context.Context, pointer model.LatestPointer, section model.Section) {
	ev := &Event{
		Type:             EventSnapshotSaved,
		SnapshotKey:      pointer.LatestSnapshotKey,
		LastMasterSaveAt: pointer.LastMasterSaveAt,
		Section:          section,
	}
	if err := h.Publish(pointer.ProjectID, ev); err != nil {
		logger.Warn("failed to publish snapshot event",
			logger.ErrorField(err),
			logger.String("projectId", pointer.ProjectID))
	}
}

// ClientCount 获取项目订阅者数量
func (h *Hub) ClientCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects[projectID])
}

// ReadPump 读取循环。订阅者只能发送心跳，其它消息被忽略。
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("projectId", c.ProjectID))
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil || ev.Type != EventPing {
			continue
		}
		pong, err := json.Marshal(&Event{Type: EventPong, Timestamp: time.Now().UnixMilli()})
		if err != nil {
			continue
		}
		select {
		case c.pong <- pong:
		default:
		}
	}
}

// WritePump 写入循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case message := <-c.pong:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
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
