package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// QuoteMessage 报价流请求，Request 缺少 underlying_price 时按曲线网格报价
type QuoteMessage struct {
	ID      string         `json:"id"`
	Request PricingRequest `json:"request"`
}

// QuoteReply 报价流响应，结果不落库
type QuoteReply struct {
	ID     string    `json:"id"`
	Mode   string    `json:"mode,omitempty"`
	Model  string    `json:"model,omitempty"`
	Price  *float64  `json:"price,omitempty"`
	Greeks any       `json:"greeks,omitempty"`
	Spots  []float64 `json:"spots,omitempty"`
	Prices []float64 `json:"prices,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Stream 以 WebSocket 提供报价，每条请求对应一条响应
func (h *PricingHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	send := make(chan []byte, sendBuffer)
	go h.writePump(ctx, conn, send)
	h.readPump(ctx, conn, send)
}

func (h *PricingHandler) readPump(ctx context.Context, conn *websocket.Conn, send chan<- []byte) {
	defer close(send)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(ctx, "websocket read failed", "error", err)
			}
			return
		}

		reply := h.quote(ctx, raw)
		out, err := json.Marshal(reply)
		if err != nil {
			logger.Error(ctx, "failed to encode quote", "error", err)
			continue
		}
		select {
		case send <- out:
		case <-ctx.Done():
			return
		}
	}
}

func (h *PricingHandler) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Warn(ctx, "websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *PricingHandler) quote(ctx context.Context, raw []byte) QuoteReply {
	var msg QuoteMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return QuoteReply{Error: "invalid message: " + err.Error()}
	}
	reply := QuoteReply{ID: msg.ID}
	req := msg.Request

	if req.UnderlyingPrice == nil {
		curve, err := h.app.PriceCurve(ctx, application.PriceCurveCommand{OptionSpec: req.spec()})
		if err != nil {
			reply.Error = err.Error()
			return reply
		}
		reply.Mode, reply.Model = "array", string(curve.Model)
		reply.Spots, reply.Prices = curve.Spots, curve.Prices
		return reply
	}

	res, err := h.app.GetGreeks(ctx, application.GreeksQuery{OptionSpec: req.spec(), UnderlyingPrice: *req.UnderlyingPrice})
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	price := res.Price
	reply.Mode, reply.Model = "scalar", string(res.Model)
	reply.Price = &price
	reply.Greeks = res.Greeks
	return reply
}
