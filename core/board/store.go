package board

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrPushFailed = errors.New("push failed")
)

// Record is the persisted whiteboard state of one room.
type Record struct {
	RoomID    string    `db:"room_id"`
	Document  []byte    `db:"document"`
	Timestamp int64     `db:"timestamp"` // Unix ms, set by the writer
	UpdatedAt time.Time `db:"updated_at"`
}

// ChangeFunc receives every record written to a subscribed room, in commit order.
type ChangeFunc func(Record)

type Subscription interface {
	Close() error
}

// Store persists one Record per room and fans out changes.
type Store interface {
	// Record returns the current record of a room or ErrNotFound.
	Record(ctx context.Context, roomID string) (Record, error)
	// Overwrite replaces the whole record of a room when timestamp is newer than the stored one.
	// Older or equal writes are dropped without error and are not published: the newer record
	// already reached (or is reaching) every subscriber.
	Overwrite(ctx context.Context, roomID string, doc []byte, timestamp int64) error
	Subscribe(ctx context.Context, roomID string, fn ChangeFunc) (Subscription, error)
}

type NotificationKind string

const (
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notifier surfaces user-visible messages (toasts, CLI output, logs).
type Notifier interface {
	Notify(kind NotificationKind, msg string)
}

// NotifierFunc adapts a func to Notifier.
type NotifierFunc func(kind NotificationKind, msg string)

func (f NotifierFunc) Notify(kind NotificationKind, msg string) { f(kind, msg) }

// user-visible messages
const (
	MsgPushFailed    = "Failed to save whiteboard state. Changes may not be preserved."
	MsgTooLarge      = "Whiteboard is too large to be saved. Undo some changes."
	MsgCorrupt       = "Received an unreadable whiteboard state. It was ignored."
	MsgLoadFailed    = "Failed to load the whiteboard. Please retry."
	MsgRenderFailed  = "Failed to render the whiteboard."
	MsgExportFailed  = "Failed to export the whiteboard."
	MsgInvalidAction = "This drawing could not be added."
)
