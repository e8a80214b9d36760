package notifysvc

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
)

type Notification struct {
	Kind    board.NotificationKind
	Message string
	SentAt  time.Time
}

// Console prints notifications (toasts of a headless client) and keeps them for inspection.
type Console struct {
	w             io.Writer
	disableOutput bool

	mu   sync.Mutex
	sent []Notification
}

var _ board.Notifier = (*Console)(nil)

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, disableOutput: w == nil}
}

func (c *Console) Notify(kind board.NotificationKind, msg string) {
	n := Notification{Kind: kind, Message: msg, SentAt: time.Now()}
	c.mu.Lock()
	c.sent = append(c.sent, n)
	c.mu.Unlock()

	if !c.disableOutput {
		_, _ = fmt.Fprintf(c.w, "%-7s %s\n", strings.ToUpper(string(kind)), msg)
	}
}

// Sent returns every notification received so far.
func (c *Console) Sent() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.sent...)
}

// Logger forwards notifications to a core.Logger, at the matching level.
type Logger struct {
	log    core.Logger
	extras map[string]interface{}
}

var _ board.Notifier = (*Logger)(nil)

// NewLogger tags every record with extras (eg: the room id).
func NewLogger(log core.Logger, extras map[string]interface{}) *Logger {
	return &Logger{log: log, extras: extras}
}

func (l *Logger) Notify(kind board.NotificationKind, msg string) {
	msg = "notification: " + msg
	switch kind {
	case board.NotifyError:
		l.log.Error(msg, l.extras)
	case board.NotifyWarning:
		l.log.Warn(msg, l.extras)
	default:
		l.log.Info(msg, l.extras)
	}
}

// Multi sends every notification to all of its notifiers, in order.
type Multi []board.Notifier

func (m Multi) Notify(kind board.NotificationKind, msg string) {
	for _, n := range m {
		n.Notify(kind, msg)
	}
}
