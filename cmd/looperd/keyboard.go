package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	looper "github.com/loopcore/engine"
)

// errQuit is returned by runKeyboard when the user presses q or Ctrl-C. It
// cancels the errgroup's context so the maintenance and status goroutines
// stop too; main treats it as a clean exit, not a failure.
var errQuit = errors.New("quit requested")

// runKeyboard puts stdin into raw mode and routes single keypresses to the
// Looper's request methods, restoring stdin on return.
//
// Grounded on terminal_host.go's TerminalHost: raw mode via term.MakeRaw,
// non-blocking single-byte reads via syscall.Read, generalized from
// TerminalHost's line/char MMIO routing to direct Looper method calls.
func runKeyboard(ctx context.Context, l *looper.Looper, src *toneSource) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	if err := syscall.SetNonblock(fd, true); err != nil {
		return err
	}
	defer syscall.SetNonblock(fd, false)

	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := syscall.Read(fd, buf)
		if n > 0 {
			switch buf[0] {
			case 'r':
				l.Trigger()
			case 'a':
				l.AddLayer()
			case 'c':
				l.Reset()
			case 'm':
				l.Mute(0, !l.Track(0).IsMuted())
			case 't':
				src.toneOn.Store(!src.toneOn.Load())
			case 'q', 0x03: // q or Ctrl-C
				return errQuit
			}
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || n == 0 {
			time.Sleep(5 * time.Millisecond)
		} else if err != nil {
			return nil
		}
	}
}
