// Package tailer follows a growing text file line by line.
package tailer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/nxadm/tail"
)

// ErrStopped is returned by Stop when the tailer was already stopped.
var ErrStopped = errors.New("tailer stopped")

// Config controls where and how a file is followed.
type Config struct {
	// FromStart reads existing content first; otherwise only appended lines
	// are delivered.
	FromStart bool

	// ReOpen follows the path across truncation and re-creation.
	ReOpen bool

	// Poll uses stat polling instead of filesystem notifications.
	Poll bool

	// MaxLineSize splits longer lines. Zero means no limit.
	MaxLineSize int
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{ReOpen: true}
}

// Tailer delivers lines of one file until its context ends or Stop is called.
type Tailer struct {
	t     *tail.Tail
	lines chan string
	errs  chan error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New starts following path. The file must exist.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	whence := io.SeekEnd
	if cfg.FromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(path, tail.Config{
		Location:    &tail.SeekInfo{Offset: 0, Whence: whence},
		ReOpen:      cfg.ReOpen,
		MustExist:   true,
		Poll:        cfg.Poll,
		Follow:      true,
		MaxLineSize: cfg.MaxLineSize,
		Logger:      tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	tl := &Tailer{
		t:     t,
		lines: make(chan string),
		errs:  make(chan error, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go tl.run(ctx)
	return tl, nil
}

func (tl *Tailer) run(ctx context.Context) {
	defer close(tl.done)
	defer close(tl.lines)
	defer close(tl.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tl.stop:
			return
		case line, ok := <-tl.t.Lines:
			if !ok {
				if err := tl.t.Err(); err != nil {
					tl.sendError(ctx, err)
				}
				return
			}
			if line.Err != nil {
				tl.sendError(ctx, line.Err)
				continue
			}
			select {
			case tl.lines <- strings.TrimSuffix(line.Text, "\r"):
			case <-ctx.Done():
				return
			case <-tl.stop:
				return
			}
		}
	}
}

func (tl *Tailer) sendError(ctx context.Context, err error) {
	select {
	case tl.errs <- err:
	case <-ctx.Done():
	case <-tl.stop:
	}
}

// Lines returns the channel of lines without their terminators. It is closed
// when the tailer stops.
func (tl *Tailer) Lines() <-chan string { return tl.lines }

// Errors returns read errors. It is closed when the tailer stops.
func (tl *Tailer) Errors() <-chan error { return tl.errs }

// Stop ends following and releases the file. Calling it again returns
// ErrStopped.
func (tl *Tailer) Stop() error {
	err := ErrStopped
	tl.stopOnce.Do(func() {
		close(tl.stop)
		<-tl.done
		err = tl.t.Stop()
		tl.t.Cleanup()
	})
	return err
}
