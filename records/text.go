package records

import (
	"fmt"
	"strings"
)

const textType = "text/plain"

// Steps records a numbered list of test steps
func Steps(steps []string) Record {
	var buf strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, step)
	}
	return &record{
		name:        "steps.txt",
		contentType: textType,
		data:        []byte(buf.String()),
	}
}
