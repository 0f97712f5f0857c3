package records

import (
	"os"
	"path/filepath"
)

const (
	pngType   = "image/png"
	videoType = "video/x-msvideo"
)

// Screenshot records a PNG capture of the browser
func Screenshot(png []byte) Record {
	return &record{
		name:        "screenshot.png",
		contentType: pngType,
		data:        png,
	}
}

// Recording refers to a screen recording on disk. The file is read each time Data is called.
func Recording(path string) Record {
	return &record{
		name:        filepath.Base(path),
		contentType: videoType,
		load: func() ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}
