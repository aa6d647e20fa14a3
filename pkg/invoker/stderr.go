package invoker

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

const maxPendingLine = 4096

// lineLogger forwards child stderr to the logger one line at a time. It never
// returns an error so a logging problem cannot stall the child process.
type lineLogger struct {
	entry   *logrus.Entry
	pending []byte
}

func newLineLogger(entry *logrus.Entry) *lineLogger {
	return &lineLogger{entry: entry}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)

	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx == -1 {
			break
		}
		l.emit(l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}

	if len(l.pending) > maxPendingLine {
		l.emit(l.pending)
		l.pending = nil
	}

	return len(p), nil
}

func (l *lineLogger) Flush() {
	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	l.entry.WithField("stream", "stderr").Debug(string(line))
}
