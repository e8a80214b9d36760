package echoapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core/board"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
)

type feedUpgrader struct {
	websocket.Upgrader
}

func newFeedUpgrader(allowedOrigins []string) feedUpgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return feedUpgrader{websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}}
}

// mailbox holds the latest record not yet sent to a feed client.
// Intermediate records are dropped: every record is a whole document.
type mailbox struct {
	mu     sync.Mutex
	rec    *board.Record
	filled bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(rec board.Record) {
	m.mu.Lock()
	m.rec = &rec
	m.filled = true
	m.mu.Unlock()
	m.signal()
}

// seed puts rec unless a change was already received.
func (m *mailbox) seed(rec board.Record) {
	m.mu.Lock()
	if m.filled {
		m.mu.Unlock()
		return
	}
	m.rec = &rec
	m.filled = true
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() (board.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return board.Record{}, false
	}
	rec := *m.rec
	m.rec = nil
	return rec, true
}

// feed streams the current record of a room then every change, as JSON frames.
func (api *whiteboardApi) feed(ctx echo.Context) error {
	roomID := ctx.Param("id")
	reqCtx := ctx.Request().Context()

	box := newMailbox()
	sub, err := api.store.Subscribe(reqCtx, roomID, box.put)
	if err != nil {
		return errors.Wrap(err, "subscribing to whiteboard changes")
	}
	defer sub.Close()

	current, err := api.store.Record(reqCtx, roomID)
	switch {
	case err == nil:
		box.seed(current)
	case errors.Cause(err) != board.ErrNotFound:
		return errors.Wrap(err, "getting whiteboard record")
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already replied
	}
	defer conn.Close()

	// the response is hijacked: the request context no longer tracks the client
	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		readFeed(conn)
	}()

	if err := writeFeed(connCtx, conn, box); err != nil && !websocket.IsCloseError(errors.Cause(err), websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		api.logger.Debug("feed closed", err, map[string]interface{}{"room": roomID})
	}
	return nil
}

// readFeed consumes control frames until the client goes away.
func readFeed(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeFeed(ctx context.Context, conn *websocket.Conn, box *mailbox) error {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteWait),
			)
			return nil
		case <-box.ready:
			rec, ok := box.take()
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(board.NewPayload(rec)); err != nil {
				return errors.Wrap(err, "writing frame")
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return errors.Wrap(err, "writing ping")
			}
		}
	}
}
