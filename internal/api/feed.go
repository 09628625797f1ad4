package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
	"github.com/tarlanskakov/patenr-ali-sh/internal/events"
	"go.uber.org/zap"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
)

// FeedMessage is a frame sent to block feed clients.
type FeedMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// BlockSummary is the compact block form pushed to feed clients.
type BlockSummary struct {
	Index     int    `json:"index"`
	Hash      string `json:"hash"`
	Nonce     uint64 `json:"nonce"`
	PatentID  string `json:"patent_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func summarize(b chain.Block) BlockSummary {
	return BlockSummary{
		Index:     b.Index,
		Hash:      b.Hash,
		Nonce:     b.Nonce,
		PatentID:  b.Payload.Get("patent_id"),
		Timestamp: chain.FormatTimestamp(b.Timestamp),
	}
}

// FeedHandler streams appended blocks to websocket clients.
type FeedHandler struct {
	bus      *events.Bus
	ledger   *chain.Ledger
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewFeedHandler creates a FeedHandler. checkOrigin decides which browser
// origins may connect; nil accepts any.
func NewFeedHandler(bus *events.Bus, ledger *chain.Ledger, checkOrigin func(*http.Request) bool, logger *zap.Logger) *FeedHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &FeedHandler{
		bus:    bus,
		ledger: ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Register mounts GET /ledger/feed on the given router group.
func (h *FeedHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/ledger/feed", h.Serve)
}

// Serve upgrades the connection, sends a "hello" frame with the current tip
// and then a "block" frame for every appended block.
func (h *FeedHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	blocks, cancel := h.bus.Subscribe()
	defer cancel()
	pcFeedClients.Inc()
	defer pcFeedClients.Dec()

	// The reader only services control frames and notices the client leaving.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, FeedMessage{Type: "hello", Data: summarize(h.ledger.Tip())}); err != nil {
		return
	}

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case b, ok := <-blocks:
			if !ok {
				return
			}
			if err := h.write(conn, FeedMessage{Type: "block", Data: summarize(b)}); err != nil {
				h.logger.Debug("feed write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *FeedHandler) write(conn *websocket.Conn, msg FeedMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return conn.WriteJSON(msg)
}
