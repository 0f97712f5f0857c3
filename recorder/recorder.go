// Package recorder runs an external screen recorder alongside each worker's test
package recorder

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/johnstarich/uiwatch/worker"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// DefaultStopTimeout bounds how long Stop waits for the recorder to finalize its file
	DefaultStopTimeout = 10 * time.Second

	killWait = 2 * time.Second
)

var (
	// ErrNotRecording is returned when the worker has no running recorder
	ErrNotRecording = errors.New("No recording in progress")
	// ErrAlreadyRecording is returned when Start is called twice without a Stop
	ErrAlreadyRecording = errors.New("Recording already in progress")
	// ErrStopTimeout is returned when the recorder did not exit in time and was killed
	ErrStopTimeout = errors.New("Recorder did not stop in time")
	// ErrNoRecording is returned when the recorder exited without producing a file
	ErrNoRecording = errors.New("Recorder did not produce a file")
)

// State is a recording's position in its lifecycle: idle -> recording -> stopping -> stopped.
// A worker stays stopped until its next Start.
type State int32

const (
	Idle State = iota
	Recording
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Config passes options for a new Recorder
type Config struct {
	Store       *artifacts.Store
	Command     CommandFunc
	StopTimeout time.Duration
	Logger      *zap.Logger
}

// Recorder starts and stops one recording per worker. Every failure degrades to "no recording".
type Recorder struct {
	store       *artifacts.Store
	command     CommandFunc
	stopTimeout time.Duration
	logger      *zap.Logger
	handles     *worker.Local
	// stopped marks workers whose last recording finished stopping
	stopped *worker.Local
}

type handle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	path  string
	state *atomic.Int32
	done  chan error
}

// New creates a Recorder. Defaults to ffmpeg with DefaultStopTimeout.
func New(config Config) *Recorder {
	if config.Command == nil {
		config.Command = FFmpeg(defaultBinary)
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Recorder{
		store:       config.Store,
		command:     config.Command,
		stopTimeout: config.StopTimeout,
		logger:      config.Logger,
		handles:     worker.NewLocal(),
		stopped:     worker.NewLocal(),
	}
}

// Start begins recording the screen for 'testName' on the worker in ctx
func (r *Recorder) Start(ctx context.Context, testName string) error {
	id, err := worker.FromContext(ctx)
	if err != nil {
		return err
	}
	if _, found, _ := r.handles.Get(ctx); found {
		return ErrAlreadyRecording
	}
	_, _, _ = r.stopped.Delete(ctx)
	logger := r.logger.With(zap.String("worker", string(id)), zap.String("test", testName))

	path, err := r.store.Path(artifacts.Recording, testName)
	if err != nil {
		logger.Warn("Recording unavailable", zap.Error(err))
		return err
	}
	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}

	cmd := r.command(path)
	output := (*logWriter)(logger.Named("recorder"))
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = killWait
	stdin, err := cmd.StdinPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		logger.Warn("Failed to start recorder, continuing without a recording", zap.Error(err))
		return errors.Wrap(err, "Failed to start recorder")
	}

	h := &handle{
		cmd:   cmd,
		stdin: stdin,
		path:  path,
		state: atomic.NewInt32(int32(Recording)),
		done:  make(chan error, 1),
	}
	go func() {
		h.done <- cmd.Wait()
	}()
	if stored, err := r.handles.Add(ctx, h); err != nil || stored != h {
		// lost a race with another Start for this worker
		r.kill(h, logger)
		if err == nil {
			err = ErrAlreadyRecording
		}
		return err
	}
	logger.Debug("Recording started", zap.String("path", path))
	return nil
}

// Path returns the output path of the worker's running recording
func (r *Recorder) Path(ctx context.Context) (string, bool) {
	h, ok := r.current(ctx)
	if !ok {
		return "", false
	}
	return h.path, true
}

// State returns the lifecycle state of the worker's recording
func (r *Recorder) State(ctx context.Context) State {
	if h, ok := r.current(ctx); ok {
		return State(h.state.Load())
	}
	if _, found, _ := r.stopped.Get(ctx); found {
		return Stopped
	}
	return Idle
}

func (r *Recorder) current(ctx context.Context) (*handle, bool) {
	value, found, err := r.handles.Get(ctx)
	if err != nil || !found {
		return nil, false
	}
	h, ok := value.(*handle)
	return h, ok
}

// Stop asks the recorder to finalize and waits up to the stop timeout for it to exit.
// Returns the absolute path of the recording if one was written.
// The worker's binding is cleared on return, so calling Stop again returns ErrNotRecording.
// While Stop waits, State reports Stopping and a concurrent Stop returns ErrNotRecording.
func (r *Recorder) Stop(ctx context.Context) (string, error) {
	h, ok := r.current(ctx)
	if !ok || !h.state.CompareAndSwap(int32(Recording), int32(Stopping)) {
		return "", ErrNotRecording
	}
	defer func() {
		h.state.Store(int32(Stopped))
		_ = r.stopped.Set(ctx, struct{}{})
		_, _, _ = r.handles.Delete(ctx)
	}()
	id, _ := worker.FromContext(ctx)
	logger := r.logger.With(zap.String("worker", string(id)), zap.String("path", h.path))

	// the process may already be exiting, so write failures don't matter
	_, _ = h.stdin.Write([]byte("q\n"))
	_ = h.stdin.Close()

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()
	select {
	case err := <-h.done:
		if err != nil {
			logger.Debug("Recorder exited with an error", zap.Error(err))
		}
	case <-timer.C:
		r.kill(h, logger)
		return "", ErrStopTimeout
	case <-ctx.Done():
		r.kill(h, logger)
		return "", ctx.Err()
	}

	if _, err := os.Stat(h.path); err != nil {
		return "", ErrNoRecording
	}
	return h.path, nil
}

func (r *Recorder) kill(h *handle, logger *zap.Logger) {
	logger.Warn("Recorder did not stop, killing it")
	if err := h.cmd.Process.Kill(); err != nil {
		logger.Debug("Failed to kill recorder", zap.Error(err))
	}
	select {
	case <-h.done:
	case <-time.After(killWait):
	}
}

// Discard deletes the recording at 'path'. Failures are logged and never returned.
func (r *Recorder) Discard(path string) {
	if path == "" {
		return
	}
	if err := r.store.Remove(path); err != nil {
		r.logger.Warn("Failed to delete recording", zap.String("path", path), zap.Error(err))
	}
}
