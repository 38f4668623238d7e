// track.go - one loop voice: state machine, allocation, envelopes
//
// Grounded on Track.h (IDLE/RECORDING/PLAYBACK skeleton, tick/record/play/
// stop/mute/pause shape) and Track_old.h (per-sample fade counters),
// reconciled with spec's five-state machine and two-phase pending-state
// transition model.
//
// Feedback-mix formula (spec.md's open question, resolved): in Overdub,
// s_in*record_envelope.get(i) is added to the previously played sample
// (read from the buffer before this tick's write), and FeedbackMultiplier
// scales that combined sum before it is written back — matching Track.h's
// comment that gain is applied once, after mixing.
//
// Play -> Idle/Stop halts only; it never clears recorded data, per the
// other open question ("adopt halt only unless requirements say
// otherwise").

package looper

// TrackState is one state of a Track's state machine.
type TrackState int

const (
	TrackNone TrackState = iota
	TrackRecord
	TrackPlay
	TrackOverdub
	TrackStop
)

func (s TrackState) String() string {
	switch s {
	case TrackNone:
		return "None"
	case TrackRecord:
		return "Record"
	case TrackPlay:
		return "Play"
	case TrackOverdub:
		return "Overdub"
	case TrackStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// Track is one loop voice: a contiguous arena region, a record/play/
// overdub/stop state machine, three envelopes (volume, record, crossfade),
// and its own timeline cursors.
type Track struct {
	index int
	arena *Arena

	allocated bool
	base      int // local offset 0 within buffer == arena-absolute base
	buffer    *BlockBuffer

	timeline int // recorded length, in blocks
	playhead int // current play position, in blocks

	tailBase          int // local offset of the crossfade tail region
	xfadeBlockCounter int // how many tail blocks have been captured so far

	state          TrackState
	requestedState TrackState // TrackNone means "no request pending"
	pendingState   TrackState
	hasPending     bool

	volumeEnv *GainEnvelope
	recordEnv *GainEnvelope
	xfadeEnv  *GainEnvelope

	muteRequested bool

	diag func(event string, trackIndex int)

	// maintenance and rings are non-nil only when the host has enabled the
	// SD-spill variant (Looper.SetMaintenance): recorded blocks then go to
	// rings.Input instead of buffer, and playback pops rings.Output instead
	// of reading buffer directly. buffer stays arena-backed in that case
	// too, but only for the short crossfade tail.
	maintenance *MaintenanceTask
	rings       *TrackRings
}

// NewTrack constructs a Track in state None with no allocation.
func NewTrack(index int, arena *Arena) *Track {
	return &Track{
		index:     index,
		arena:     arena,
		volumeEnv: NewGainEnvelope(1.0),
		recordEnv: NewGainEnvelope(1.0),
		xfadeEnv:  NewGainEnvelope(1.0),
	}
}

// Index returns this track's position within its Looper.
func (t *Track) Index() int { return t.index }

// State returns the track's current state.
func (t *Track) State() TrackState { return t.state }

// IsNone reports whether the track has never been recorded (or has been
// cleared back to that state).
func (t *Track) IsNone() bool { return t.state == TrackNone }

// IsStopped reports whether the track is in Stop.
func (t *Track) IsStopped() bool { return t.state == TrackStop }

// IsMuted reports muted only once the mute flag is set and the volume
// envelope has fully settled at 0.
func (t *Track) IsMuted() bool {
	return t.muteRequested && t.volumeEnv.IsMuteDone()
}

// TimelineBlocks returns the recorded loop length in blocks.
func (t *Track) TimelineBlocks() int { return t.timeline }

// Playhead returns the current play position in blocks.
func (t *Track) Playhead() int { return t.playhead }

// Record requests a None->Record transition, applied at the next Update.
func (t *Track) Record() { t.requestedState = TrackRecord }

// Play requests a Record/Overdub/Stop->Play transition.
func (t *Track) Play() { t.requestedState = TrackPlay }

// Overdub requests a Play->Overdub transition.
func (t *Track) Overdub() { t.requestedState = TrackOverdub }

// Stop requests a Play/Overdub->Stop transition. The transition is
// fade-gated: the volume envelope fades to 0 before the state actually
// becomes Stop.
func (t *Track) Stop() { t.requestedState = TrackStop }

// SetVolume forwards to the volume envelope's user gain.
func (t *Track) SetVolume(g float64) { t.volumeEnv.SetGain(g) }

// SetMuted forwards to the volume envelope and latches the mute flag that
// gates IsMuted.
func (t *Track) SetMuted(muted bool) {
	t.muteRequested = muted
	t.volumeEnv.SetMuted(muted)
}

// Clear releases the track's allocation and returns it to None. Rejected
// (returns false and reports EventClearRejected) unless the track is in
// Stop or None and, for a Stop track, its allocation is the most recently
// allocated (LIFO).
func (t *Track) Clear() bool {
	if t.state != TrackStop && t.state != TrackNone {
		t.report(EventClearRejected)
		return false
	}
	if !t.allocated {
		return true
	}
	if !t.arena.Free(t.base) {
		t.report(EventClearRejected)
		return false
	}
	t.allocated = false
	t.buffer = nil
	t.base = 0
	t.tailBase = 0
	t.xfadeBlockCounter = 0
	t.timeline = 0
	t.playhead = 0
	t.state = TrackNone
	t.requestedState = TrackNone
	t.hasPending = false
	t.volumeEnv.HardReset(1.0)
	t.recordEnv.HardReset(1.0)
	t.xfadeEnv.HardReset(1.0)
	if t.rings != nil {
		if t.maintenance != nil {
			t.maintenance.Unregister(t.index)
		}
		t.rings = nil
	}
	return true
}

// Update runs the state driver and then the per-block audio behavior for
// the current state, advancing all three envelopes exactly once. Called
// once per block by Looper, in track index order.
func (t *Track) Update(in, out []int16) {
	t.applyTransition()

	switch t.state {
	case TrackNone:
		// no audio activity
	case TrackRecord:
		t.actRecord(in)
	case TrackPlay:
		t.actPlay(in, out, false)
	case TrackOverdub:
		t.actPlay(in, out, true)
	case TrackStop:
		t.playhead = 0
	}

	t.volumeEnv.Update()
	t.recordEnv.Update()
	t.xfadeEnv.Update()
}

func (t *Track) applyTransition() {
	if t.hasPending {
		if t.volumeEnv.IsDone() {
			t.state = t.pendingState
			t.hasPending = false
		}
		return
	}

	switch t.requestedState {
	case TrackNone:
		return
	case TrackRecord:
		if t.state == TrackNone {
			t.beginRecord()
		}
	case TrackPlay:
		switch t.state {
		case TrackRecord:
			t.finalizeRecord()
		case TrackOverdub:
			t.state = TrackPlay
		case TrackStop:
			t.state = TrackPlay
			t.volumeEnv.Unmute()
		}
	case TrackOverdub:
		if t.state == TrackPlay {
			t.state = TrackOverdub
		}
	case TrackStop:
		if t.state == TrackPlay || t.state == TrackOverdub {
			t.volumeEnv.Mute()
			t.pendingState = TrackStop
			t.hasPending = true
		}
	}
	t.requestedState = TrackNone
}

func (t *Track) beginRecord() {
	t.base = t.arena.Cursor()
	t.buffer = NewBlockBuffer(t.arena.Slice(t.base, t.arena.Capacity()-t.base))
	t.allocated = true
	t.timeline = 0
	t.recordEnv.HardReset(1.0)
	t.state = TrackRecord
	if t.maintenance != nil {
		t.rings = t.maintenance.Register(t.index)
	} else {
		t.rings = nil
	}
}

// finalizeRecord commits the formal arena allocation and transitions into
// Play. A track spilling to the SD-spill tier only ever needs arena space
// for its crossfade tail, since the recorded body lives in TrackStore; a
// track holding everything in SRAM needs the full recorded span too.
func (t *Track) finalizeRecord() {
	tailSamples := FadeBlocks * BlockSamples
	span := tailSamples
	t.tailBase = 0
	if t.rings == nil {
		span = t.timeline*BlockSamples + tailSamples
		t.tailBase = t.timeline * BlockSamples
	} else {
		t.rings.Close()
	}
	t.arena.Alloc(span)
	t.xfadeBlockCounter = 0
	t.playhead = 0
	t.state = TrackPlay
}

func (t *Track) actRecord(in []int16) {
	gained := make([]int16, BlockSamples)
	for i := 0; i < BlockSamples; i++ {
		gained[i] = clampSample(int32(float64(in[i]) * t.recordEnv.Get(i)))
	}

	if t.rings != nil {
		if !t.rings.Input.Push(Block(gained)) {
			t.report(EventRingOverrun)
		}
		t.timeline++
		return
	}

	required := (t.timeline+1)*BlockSamples + FadeBlocks*BlockSamples
	if required > t.buffer.CapacitySamples() {
		t.report(EventArenaExhausted)
		t.requestedState = TrackPlay
		return
	}
	t.buffer.Write(t.timeline*BlockSamples, gained)
	t.timeline++
}

func (t *Track) actPlay(in, out []int16, overdub bool) {
	if t.timeline == 0 {
		return
	}

	if t.playhead == 0 {
		t.xfadeEnv.HardReset(1.0)
		t.xfadeEnv.Mute()
	}

	played := make(Block, BlockSamples)
	if t.rings != nil {
		if !t.rings.Output.Pop(played) {
			t.report(EventRingUnderrun)
		}
	} else {
		t.buffer.Read(t.playhead*BlockSamples, played)
	}

	inXfadeWindow := t.playhead < FadeBlocks
	var tail []int16
	if inXfadeWindow {
		tail = make([]int16, BlockSamples)
		t.buffer.Read(t.tailBase+t.playhead*BlockSamples, tail)
	}

	if overdub {
		mixed := make([]int16, BlockSamples)
		for i := 0; i < BlockSamples; i++ {
			sum := float64(in[i])*t.recordEnv.Get(i) + float64(played[i])
			mixed[i] = clampSample(int32(sum * FeedbackMultiplier))
		}
		// The SD-spill tier's storage is a sequential, batch-fetched file;
		// it has no random-access overwrite, so an overdub's mixed result
		// can only be persisted for a track holding its span in the arena.
		if t.rings == nil {
			t.buffer.Write(t.playhead*BlockSamples, mixed)
		}
	}

	for i := 0; i < BlockSamples; i++ {
		s := float64(played[i])
		if inXfadeWindow {
			s += float64(tail[i]) * t.xfadeEnv.Get(i)
		}
		s *= t.volumeEnv.Get(i)
		out[i] = clampSample(int32(out[i]) + int32(s))
	}

	if t.xfadeBlockCounter < FadeBlocks {
		t.buffer.Write(t.tailBase+t.xfadeBlockCounter*BlockSamples, in)
		t.xfadeBlockCounter++
	}

	t.playhead++
	if t.playhead >= t.timeline {
		t.playhead = 0
	}
}

// forceStop snaps the track directly into Stop, abandoning any in-flight
// fade. Used only by Looper.Reset's bounded cancellation timeout.
func (t *Track) forceStop() {
	t.hasPending = false
	t.requestedState = TrackNone
	t.state = TrackStop
	t.volumeEnv.HardReset(0)
	t.playhead = 0
}

func (t *Track) report(event string) {
	if t.diag != nil {
		t.diag(event, t.index)
	}
}
