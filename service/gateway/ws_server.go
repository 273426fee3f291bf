package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Origin 由 Admit 校验，这里一律放行，拒绝要通过关闭帧告诉客户端
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport gorilla 连接同一时刻只能有一个写者
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) WriteClose(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func (t *wsTransport) Close() error { return t.conn.Close() }

// HandleWS GET /ws
func (g *Gateway) HandleWS(c *gin.Context) {
	hs := HandshakeFromRequest(c.Request, g.cfg.TrustProxy)
	adm, admErr := g.Admit(c.Request.Context(), hs)

	header := http.Header{}
	for _, ck := range adm.SetCookies() {
		header.Add("Set-Cookie", ck.String())
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		// 非 WebSocket 请求/握手失败，upgrader 已经写了 HTTP 错误
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}
	tr := &wsTransport{conn: ws}
	if admErr != nil {
		reject(tr, admErr, hs)
		return
	}
	conn, err := g.Open(tr, adm)
	if err != nil {
		reject(tr, err, hs)
		return
	}
	g.readLoop(ws, conn)
}

// reject 升级后立刻发关闭帧，客户端只有这样才能拿到关闭码
func reject(tr Transport, err error, hs Handshake) {
	code, reason := CodePolicy, ErrInternal.Msg
	if ce, ok := errs.AsCode(err); ok {
		code, reason = ce.Code, ce.Msg
	}
	if ErrTooManySockets.Is(err) {
		// 超上限多半是脚本在刷连接，进审计日志
		logger.Hostile("socket limit exceeded", zap.String("ip", hs.IP), zap.Error(err))
	} else {
		logger.Info("[HandleWS] admission rejected",
			zap.String("ip", hs.IP), zap.Int("code", code), zap.String("reason", reason), zap.Error(err))
	}
	_ = tr.WriteClose(code, reason)
	_ = tr.Close()
}

// readLoop 只读不写；每帧同步处理，保证到达顺序
func (g *Gateway) readLoop(ws *websocket.Conn, conn *Connection) {
	ws.SetReadLimit(int64(g.Limits().MaxMessageBytes) + 1)
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				logger.Hostile("frame over read limit", zap.String("conn", conn.id), zap.String("ip", conn.ip))
				g.terminateIP(conn.ip, serverClosure(ReasonMessageTooBig))
			case errors.As(err, &ce):
				conn.CloseFromClient(ce.Code, ce.Text)
			default:
				logger.Debug("[WS] read err", zap.String("conn", conn.id), zap.Error(err))
				conn.CloseFromClient(CodeAbnormal, "")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		conn.HandleFrame(data)
	}
}
