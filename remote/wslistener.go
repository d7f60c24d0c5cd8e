package remote

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"

	mandel "github.com/marben/mandelzoom"
)

// WebsocketListener turns accepted websocket connections into a
// net.Listener, so a hub behind an HTTP server can take workers that dial
// in over ws. Mount Handler on a mux and hand the listener to Hub.Serve.
type WebsocketListener struct {
	ch     chan *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	addr   wsAddr
}

var _ net.Listener = (*WebsocketListener)(nil)

func NewWebsocketListener(ctx context.Context, addr string) *WebsocketListener {
	ctx, cancel := context.WithCancel(ctx)
	return &WebsocketListener{
		ch:     make(chan *websocket.Conn),
		ctx:    ctx,
		cancel: cancel,
		addr:   wsAddr{addr: addr},
	}
}

// Handler upgrades incoming requests and queues them for Accept.
func (l *WebsocketListener) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // TODO: tighten in prod
		})
		if err != nil {
			mandel.Logger().Warn("websocket accept failed", "err", err)
			return
		}
		select {
		case l.ch <- c:
		case <-l.ctx.Done():
			c.Close(websocket.StatusGoingAway, "listener closed")
		}
	}
}

func (l *WebsocketListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return websocket.NetConn(l.ctx, c, websocket.MessageBinary), nil
	case <-l.ctx.Done():
		return nil, net.ErrClosed
	}
}

func (l *WebsocketListener) Addr() net.Addr { return l.addr }

func (l *WebsocketListener) Close() error {
	l.cancel()
	return nil
}

// wsAddr implements net.Addr.
type wsAddr struct {
	addr string
}

func (a wsAddr) Network() string { return "ws" }
func (a wsAddr) String() string  { return a.addr }
