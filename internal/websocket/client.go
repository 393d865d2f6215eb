package websocket

import (
	"fmt"
	"log"
	"sync"
	"time"

	"chat-hub-backend/internal/hub"

	"github.com/gorilla/websocket"
)

// WSClient is one live connection. It implements hub.Sender: the hub pushes
// events into the buffered send channel and a single write pump drains it,
// which keeps delivery to one connection in publish order.
type WSClient struct {
	Conn     *websocket.Conn
	send     chan hub.Event
	ConnID   string
	cfg      Config
	done     chan struct{} // Signal for coordinating goroutine shutdown
	mu       sync.Mutex    // Mutex for connection access
	isClosed bool          // Flag to track connection state
	once     sync.Once
}

func newWSClient(conn *websocket.Conn, connID string, cfg Config) *WSClient {
	return &WSClient{
		Conn:   conn,
		send:   make(chan hub.Event, cfg.SendBuffer),
		ConnID: connID,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

func (cl *WSClient) ID() string {
	return cl.ConnID
}

// Send hands an event to the write pump without blocking. A full buffer or a
// closed connection drops the event: the hub never retries, the client
// reconnects and re-joins.
func (cl *WSClient) Send(ev hub.Event) error {
	select {
	case <-cl.done:
		incDropped()
		return fmt.Errorf("websocket: connection %s closed", cl.ConnID)
	default:
	}

	select {
	case cl.send <- ev:
		return nil
	default:
		incDropped()
		return fmt.Errorf("websocket: send buffer full for connection %s", cl.ConnID)
	}
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(cl.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Ping error for connection %s: %v", cl.ConnID, err)
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case ev, ok := <-cl.send:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteJSON(ev)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Error sending event to connection %s: %v", cl.ConnID, err)
				return
			}
			addDelivered(1)
		}
	}
}

// readMessage pumps inbound events into the handler. It owns the heartbeat
// deadline: a connection that stays silent past PongWait is treated as
// disconnected and runs the full unregister cascade.
func (cl *WSClient) readMessage(h *Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in readMessage: %v", r)
		}

		cl.close()
		h.hub.Disconnect(cl.ConnID)
		decConnections()
		log.Printf("Connection %s disconnected", cl.ConnID)
	}()

	cl.Conn.SetReadLimit(cl.cfg.ReadLimit)
	cl.Conn.SetReadDeadline(time.Now().Add(cl.cfg.PongWait))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(cl.cfg.PongWait))
	})

	for {
		_, message, err := cl.Conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					break
				}
			}
			log.Printf("Error reading from connection %s: %v", cl.ConnID, err)
			break
		}
		cl.Conn.SetReadDeadline(time.Now().Add(cl.cfg.PongWait))

		h.dispatch(cl, message)
	}
}

func (cl *WSClient) close() {
	cl.once.Do(func() {
		close(cl.done)
	})
}
