package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/visionsuite/camstream/internal/shared"
)

const (
	liveWriteWait    = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingPeriod   = (livePongWait * 9) / 10
	livePushInterval = 100 * time.Millisecond
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Live streams frames over a WebSocket as binary JPEG messages. The feed
// polls the slot at a fixed cadence and only pushes when the sequence number
// advances, so a stalled source produces a quiet socket rather than
// duplicate frames.
func (h *Handler) Live(c echo.Context) error {
	id := c.Param("id")
	slot, ok := h.registry.Slot(id)
	if !ok {
		return shared.NotFound("stream_not_found", "stream not found")
	}

	ws, err := liveUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "source_id", id)
		return err
	}
	defer ws.Close()

	h.logger.Info("live viewer connected", "source_id", id)
	defer h.logger.Info("live viewer disconnected", "source_id", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
		ws.SetPongHandler(func(string) error {
			_ = ws.SetReadDeadline(time.Now().Add(livePongWait))
			return nil
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pushTicker := time.NewTicker(livePushInterval)
	defer pushTicker.Stop()
	pingTicker := time.NewTicker(livePingPeriod)
	defer pingTicker.Stop()

	ctx := c.Request().Context()
	var lastSeq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil

		case <-pushTicker.C:
			rec, ok := slot.Latest()
			if !ok || rec.Seq == lastSeq {
				continue
			}
			lastSeq = rec.Seq

			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := ws.WriteMessage(websocket.BinaryMessage, rec.Data); err != nil {
				return nil
			}

		case <-pingTicker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
