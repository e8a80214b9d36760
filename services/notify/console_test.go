package notifysvc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-board/core/board"
)

type recordingLogger struct {
	levels []string
}

func (l *recordingLogger) Debug(string, ...interface{}) { l.levels = append(l.levels, "debug") }
func (l *recordingLogger) Info(string, ...interface{})  { l.levels = append(l.levels, "info") }
func (l *recordingLogger) Warn(string, ...interface{})  { l.levels = append(l.levels, "warn") }
func (l *recordingLogger) Error(string, ...interface{}) { l.levels = append(l.levels, "error") }
func (l *recordingLogger) Fatal(string, ...interface{}) { l.levels = append(l.levels, "fatal") }

func TestNotifiers(t *testing.T) {
	buf := new(bytes.Buffer)
	console := NewConsole(buf)
	log := new(recordingLogger)
	n := Multi{console, NewLogger(log, map[string]interface{}{"room": "r1"})}

	n.Notify(board.NotifyWarning, board.MsgPushFailed)
	n.Notify(board.NotifyError, board.MsgCorrupt)
	n.Notify(board.NotifyInfo, "hi")

	assert.Equal(t, "WARNING "+board.MsgPushFailed+"\nERROR   "+board.MsgCorrupt+"\nINFO    hi\n", buf.String())
	assert.Equal(t, []string{"warn", "error", "info"}, log.levels)

	sent := console.Sent()
	assert.Len(t, sent, 3)
	assert.Equal(t, board.NotifyWarning, sent[0].Kind)
}

func TestConsole_silent(t *testing.T) {
	console := NewConsole(nil)
	console.Notify(board.NotifyInfo, "quiet")
	assert.Len(t, console.Sent(), 1)
}
