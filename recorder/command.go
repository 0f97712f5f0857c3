package recorder

import (
	"os"
	"os/exec"
	"runtime"
)

const (
	defaultBinary = "ffmpeg"
	frameRate     = "15"
)

// CommandFunc builds the recorder process that writes a capture to 'path'
type CommandFunc func(path string) *exec.Cmd

// FFmpeg returns a CommandFunc capturing the full desktop with 'binary'
func FFmpeg(binary string) CommandFunc {
	if binary == "" {
		binary = defaultBinary
	}
	return func(path string) *exec.Cmd {
		return exec.Command(binary, ffmpegArgs(runtime.GOOS, os.Getenv("DISPLAY"), path)...)
	}
}

func ffmpegArgs(goos, display, path string) []string {
	var inputFormat, input string
	switch goos {
	case "windows":
		inputFormat, input = "gdigrab", "desktop"
	case "darwin":
		inputFormat, input = "avfoundation", "1"
	default:
		if display == "" {
			display = ":0"
		}
		inputFormat, input = "x11grab", display
	}
	return []string{
		"-y", // overwrite output
		"-f", inputFormat,
		"-framerate", frameRate,
		"-i", input,
		path,
	}
}
