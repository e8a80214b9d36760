// Package remote is a board.Store backed by a board API server: records over HTTP, changes over a websocket.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	log     core.Logger
}

var _ board.Store = (*Client)(nil)

// NewClient talks to the API at baseURL (eg: http://10.0.0.1:8000) with a JWT.
func NewClient(baseURL, token string, log core.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log,
	}, nil
}

func (c *Client) endpoint(roomID string, suffix string) string {
	u := *c.baseURL
	// Path holds the decoded form, RawPath the escaped one
	u.RawPath = c.baseURL.EscapedPath() + "/v1/classes/" + url.PathEscape(roomID) + "/whiteboard" + suffix
	u.Path += "/v1/classes/" + roomID + "/whiteboard" + suffix
	return u.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return errors.Errorf("%s: %s", resp.Status, bytes.TrimSpace(body))
}

func (c *Client) Record(ctx context.Context, roomID string) (board.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(roomID, ""), nil)
	if err != nil {
		return board.Record{}, errors.Wrap(err, "building request")
	}
	resp, err := c.do(req)
	if err != nil {
		return board.Record{}, errors.Wrap(err, "getting record")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return board.Record{}, board.ErrNotFound
	default:
		return board.Record{}, errors.Wrap(statusError(resp), "getting record")
	}

	var p board.Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return board.Record{}, errors.Wrap(err, "decoding record")
	}
	return p.Record(), nil
}

func (c *Client) Overwrite(ctx context.Context, roomID string, doc []byte, timestamp int64) error {
	body, err := json.Marshal(board.WriteRequest{Document: doc, Timestamp: timestamp})
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(roomID, ""), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, "writing record")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return errors.Wrap(statusError(resp), "writing record")
	}
	return nil
}

// Subscribe keeps a websocket open on the room feed, reconnecting with backoff until the subscription is closed.
// The server sends the current record on every (re)connection, so nothing is missed across reconnects.
func (c *Client) Subscribe(ctx context.Context, roomID string, fn board.ChangeFunc) (board.Subscription, error) {
	conn, err := c.dial(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sub := &subscription{client: c, roomID: roomID, fn: fn, stop: make(chan struct{}), done: make(chan struct{})}
	go sub.run(conn)
	return sub, nil
}

func (c *Client) dial(ctx context.Context, roomID string) (*websocket.Conn, error) {
	u, _ := url.Parse(c.endpoint(roomID, "/feed"))
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "dialing feed")
	}
	return conn, nil
}

type subscription struct {
	client *Client
	roomID string
	fn     board.ChangeFunc

	mu   sync.Mutex
	conn *websocket.Conn
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) run(conn *websocket.Conn) {
	defer close(s.done)
	backoff := minBackoff
	for {
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		err := s.read(conn)
		_ = conn.Close()
		if s.stopped() {
			return
		}
		s.client.log.Warn("remote: feed disconnected", err, map[string]interface{}{"room": s.roomID})

		for {
			select {
			case <-s.stop:
				return
			case <-time.After(backoff):
			}
			conn, err = s.client.dial(context.Background(), s.roomID)
			if err == nil {
				backoff = minBackoff
				break
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (s *subscription) read(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var p board.Payload
		if err := json.Unmarshal(msg, &p); err != nil {
			s.client.log.Error("remote: invalid feed frame", err, map[string]interface{}{"room": s.roomID})
			continue
		}
		s.fn(p.Record())
	}
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.mu.Lock()
		if s.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
	<-s.done
	return nil
}

func (s *subscription) String() string { return fmt.Sprintf("remote feed of %s", s.roomID) }
