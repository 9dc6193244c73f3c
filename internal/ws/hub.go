package ws

import (
	"encoding/json"
	"sync"

	"stkpay/internal/models"
)

// Message is the frame pushed to status subscribers.
type Message struct {
	Type        string              `json:"type"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Error       string              `json:"error,omitempty"`
}

const MessageTransaction = "transaction"

// Client represents a single WebSocket connection watching one transaction.
type Client struct {
	TransactionID string
	Send          chan []byte
	Hub           *Hub // set so Close() can unregister
	mu            sync.Mutex
	closed        bool
}

func NewClient(transactionID string) *Client {
	return &Client{TransactionID: transactionID, Send: make(chan []byte, 16)}
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// trySend drops the frame when the client is closed or not keeping up.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub fans transaction updates out to the connections watching them.
type Hub struct {
	mu sync.RWMutex
	// transactionID -> clients (a page may be open in several tabs)
	byTransaction map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byTransaction: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byTransaction[c.TransactionID] == nil {
		h.byTransaction[c.TransactionID] = make(map[*Client]struct{})
	}
	h.byTransaction[c.TransactionID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byTransaction[c.TransactionID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byTransaction, c.TransactionID)
		}
	}
}

// PublishTransaction sends the snapshot to everyone watching tx.
func (h *Hub) PublishTransaction(tx *models.Transaction) {
	data, err := json.Marshal(Message{Type: MessageTransaction, Transaction: tx})
	if err != nil {
		return
	}
	h.mu.RLock()
	m := h.byTransaction[tx.ID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) ClientCount(transactionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTransaction[transactionID])
}
