package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"stkpay/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TransactionLookup loads the current snapshot sent on connect.
type TransactionLookup interface {
	Status(id string) (*models.Transaction, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UpgradePaymentWS streams status updates for ?id=<transactionId>.
func UpgradePaymentWS(hub *Hub, lookup TransactionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("id")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction ID required"})
			return
		}
		tx, err := lookup.Status(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Register before reading the snapshot so no update falls in between.
		client := NewClient(id)
		hub.Register(client)
		defer client.Close()

		if fresh, err := lookup.Status(id); err == nil {
			tx = fresh
		}
		data, _ := json.Marshal(Message{Type: MessageTransaction, Transaction: tx})
		client.trySend(data)
		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames until the connection closes.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
