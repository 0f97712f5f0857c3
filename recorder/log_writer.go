package recorder

import (
	"bytes"

	"go.uber.org/zap"
)

// logWriter sends recorder process output to the debug log, one entry per line
type logWriter zap.Logger

func (l *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			(*zap.Logger)(l).Debug(string(line))
		}
	}
	return len(p), nil
}
