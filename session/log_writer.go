package session

import (
	"bytes"

	"go.uber.org/zap"
)

// debugWriter forwards browser driver output to the debug log
type debugWriter zap.Logger

func (d *debugWriter) Write(p []byte) (n int, err error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			(*zap.Logger)(d).Debug(string(line))
		}
	}
	return len(p), nil
}
