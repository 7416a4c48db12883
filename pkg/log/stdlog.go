package log

import (
	"log"
	"log/slog"
)

// ToStdLogger adapts l into a *log.Logger, for libraries that only accept
// the standard library's logger type.
func ToStdLogger(l Logger) *log.Logger {
	bl, ok := l.(*BaseLogger)
	if !ok {
		return log.Default()
	}
	return slog.NewLogLogger(bl.slogLogger.Handler(), slog.LevelInfo)
}

// RedirectStdLog points the standard library's global logger at l, so
// third-party code writing through log.Print ends up in this facade's
// pipeline too.
func RedirectStdLog(l Logger) func() {
	bl, ok := l.(*BaseLogger)
	if !ok {
		return func() {}
	}
	prev := log.Default()
	log.SetOutput(logWriter{bl})
	log.SetFlags(0)
	return func() { log.SetOutput(prev.Writer()) }
}

// logWriter adapts a *BaseLogger into an io.Writer for log.SetOutput.
type logWriter struct{ l *BaseLogger }

func (w logWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.l.Info(msg)
	return len(p), nil
}
