package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/red-tetris-backend/internal/hub"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
	"github.com/DoyleJ11/red-tetris-backend/internal/protocol"
)

const (
	writeTimeout = 3 * time.Second
	outboxSize   = 32
)

type Options struct {
	ReadTimeout    time.Duration
	OriginPatterns []string
}

func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := match.ConnID(uuid.NewString())
		clog := log.With(zap.String("conn", string(id)))
		out := make(chan protocol.ServerMessage, outboxSize)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if !h.Send(ctx, hub.Connect{Conn: id, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "server shutting down")
			return
		}
		defer h.Send(context.Background(), hub.Disconnect{Conn: id})

		// Writer goroutine: drains the outbox until the hub closes it.
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					clog.Error("encode frame", zap.Error(err))
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err = conn.Write(wctx, websocket.MessageText, payload)
				wcancel()
				if err != nil {
					clog.Debug("write failed", zap.Error(err))
					cancel()
					return
				}
			}
			// Outbox closed: the hub dropped us or is shutting down.
			conn.Close(websocket.StatusPolicyViolation, "disconnected by server")
		}()

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, opts.ReadTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Debug("client closed")
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			intent, err := protocol.Decode(data)
			if err != nil {
				clog.Debug("rejected frame", zap.Error(err))
				if werr := writeError(ctx, conn, protocol.ErrorText(err)); werr != nil {
					return
				}
				continue
			}

			if !h.Send(ctx, hub.FromClient{Conn: id, Intent: intent}) {
				return
			}
		}
	}
}

// writeError answers a bad frame directly. The hub never sees it.
func writeError(ctx context.Context, conn *websocket.Conn, text string) error {
	payload, err := json.Marshal(protocol.ErrorMsg(text))
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
