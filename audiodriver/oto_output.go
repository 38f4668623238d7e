//go:build !headless

package audiodriver

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	looper "github.com/loopcore/engine"
)

// otoOutput streams a Source's int16 blocks to the system's default audio
// device via oto/v3, converting to the float32LE format oto requires.
type otoOutput struct {
	ctx     *oto.Context
	player  *oto.Player
	source  atomic.Pointer[Source]
	scratch []int16
	started bool
	mu      sync.Mutex
}

// NewOutput opens the default audio device and returns an Output that
// pulls blocks from src. The device is not started until Start is called.
func NewOutput(src Source) (Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   looper.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	o := &otoOutput{ctx: ctx, scratch: make([]int16, looper.BlockSamples)}
	o.source.Store(&src)
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read implements io.Reader for oto.Player: it is called from oto's own
// audio thread, never from the looper's Update goroutine.
func (o *otoOutput) Read(p []byte) (int, error) {
	srcPtr := o.source.Load()
	if srcPtr == nil || *srcPtr == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	src := *srcPtr

	blockBytes := looper.BlockSamples * 4
	for off := 0; off+blockBytes <= len(p); off += blockBytes {
		src.NextBlock(o.scratch)
		for i, s := range o.scratch {
			f := float32(s) / 32768.0
			bits := math.Float32bits(f)
			p[off+i*4+0] = byte(bits)
			p[off+i*4+1] = byte(bits >> 8)
			p[off+i*4+2] = byte(bits >> 16)
			p[off+i*4+3] = byte(bits >> 24)
		}
	}
	return len(p), nil
}

func (o *otoOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		o.player.Play()
		o.started = true
	}
	return nil
}

func (o *otoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started && o.player != nil {
		o.player.Close()
		o.started = false
	}
}

func (o *otoOutput) Close() {
	o.Stop()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
}

func (o *otoOutput) IsStarted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started
}
