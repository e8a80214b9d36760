package core

// Logger logs app events. args may contain errors, maps of extra data and at most one Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the authenticated caller attached to a log record.
type Person struct {
	ID       string
	Username string
	Email    string
}
