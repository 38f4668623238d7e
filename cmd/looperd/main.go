// looperd - an interactive command-line host for the looper engine.
//
// Grounded on main.go's flag.NewFlagSet/boilerPlate shape, terminal_host.go's
// raw-stdin TerminalHost (generalized from line/char MMIO routing to
// single-key transport control), and features.go's printFeatures (adapted
// into a one-shot startup banner instead of an init()-registered list,
// since looperd has no optional build-tag features to enumerate beyond the
// audio backend itself).
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loopcore/engine/audiodriver"
	looper "github.com/loopcore/engine"
	"github.com/loopcore/engine/looperstatus"
)

const version = "0.1.0"

func boilerPlate() {
	fmt.Println("looperd - a real-time audio looper engine")
	fmt.Printf("version %s\n", version)
	fmt.Println("keys: r=trigger  a=add layer  c=reset  m=mute track 0  t=toggle tone  q=quit")
}

// toneSource feeds the looper a block of either silence or a fixed sine
// tone, selectable at runtime, standing in for a real audio input device
// (out of scope per spec.md's non-goals).
type toneSource struct {
	l         *looper.Looper
	out       []int16
	sampleIdx int
	toneOn    atomic.Bool
}

func newToneSource(l *looper.Looper) *toneSource {
	return &toneSource{l: l, out: make([]int16, looper.BlockSamples)}
}

func (s *toneSource) NextBlock(out []int16) {
	in := s.out
	if s.toneOn.Load() {
		const freq = 220.0
		for i := range in {
			phase := 2 * math.Pi * freq * float64(s.sampleIdx) / float64(looper.SampleRate)
			in[i] = int16(8000 * math.Sin(phase))
			s.sampleIdx++
		}
	} else {
		for i := range in {
			in[i] = 0
		}
		s.sampleIdx = 0
	}
	s.l.Update(in, out)
}

func runMaintenance(ctx context.Context, task *looper.MaintenanceTask) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			task.Run()
		}
	}
}

func publishStatus(ctx context.Context, l *looper.Looper, store *looperstatus.Store) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tracks := make([]looperstatus.TrackSnapshot, l.NumTracks())
			for i := 0; i < l.NumTracks(); i++ {
				t := l.Track(i)
				tracks[i] = looperstatus.TrackSnapshot{
					Index:    i,
					State:    t.State().String(),
					Timeline: t.TimelineBlocks(),
					Playhead: t.Playhead(),
					Muted:    t.IsMuted(),
				}
			}
			store.Set(looperstatus.Snapshot{
				State:    l.State().String(),
				Playhead: l.Playhead(),
				Timeline: l.Timeline(),
				Tracks:   tracks,
			})
		}
	}
}

func main() {
	boilerPlate()

	var (
		numLoops   int
		arenaSize  string
		sdSpill    bool
		sdSpillDir string
	)
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.IntVar(&numLoops, "loops", looper.NumLoops, "number of loop tracks")
	flagSet.StringVar(&arenaSize, "arena-samples", strconv.Itoa(looper.TotalArenaSamples), "arena capacity, in samples")
	flagSet.BoolVar(&sdSpill, "sd-spill", false, "spill recorded audio to disk instead of holding it all in the arena")
	flagSet.StringVar(&sdSpillDir, "sd-spill-dir", "./looperd-spill", "directory for the SD-spill variant's per-track files")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	arenaSamples, err := strconv.Atoi(arenaSize)
	if err != nil {
		fmt.Printf("invalid -arena-samples: %v\n", err)
		os.Exit(1)
	}

	l := looper.New(numLoops, arenaSamples)
	l.SetDiagnostics(func(event string, trackIndex int) {
		fmt.Fprintf(os.Stderr, "looperd: %s (track %d)\n", event, trackIndex)
	})

	var maintenance *looper.MaintenanceTask
	if sdSpill {
		store, err := looper.NewFileTrackStore(sdSpillDir)
		if err != nil {
			fmt.Printf("failed to open sd-spill directory: %v\n", err)
			os.Exit(1)
		}
		if err := store.RemoveAll(); err != nil {
			fmt.Printf("failed to clear stale sd-spill files: %v\n", err)
			os.Exit(1)
		}
		maintenance = looper.NewMaintenanceTask(store)
		maintenance.SetDiagnostics(func(event string, trackIndex int) {
			fmt.Fprintf(os.Stderr, "looperd: %s (track %d)\n", event, trackIndex)
		})
		l.SetMaintenance(maintenance)
	}

	src := newToneSource(l)
	out, err := audiodriver.NewOutput(src)
	if err != nil {
		fmt.Printf("failed to open audio output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.Start(); err != nil {
		fmt.Printf("failed to start audio output: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var statusStore looperstatus.Store
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return publishStatus(gctx, l, &statusStore) })
	if maintenance != nil {
		group.Go(func() error { return runMaintenance(gctx, maintenance) })
	}
	group.Go(func() error { return runKeyboard(gctx, l, src) })

	if err := group.Wait(); err != nil && err != errQuit {
		fmt.Fprintf(os.Stderr, "looperd: %v\n", err)
		os.Exit(1)
	}
}
