// looper.go - the top-level audio node: tracks, global playhead, phase lock
//
// Grounded on AudioLooper.h (the update()/poll() split between audio
// thread and maintenance, inputBuffer/loopN pattern generalized to
// NumLoops tracks) and audio_chip.go's SoundChip.GenerateSample orchestration
// (iterate owned voices in index order, sum into one output accumulator).
//
// trigger()/"Play -> Record (new layer)" disambiguation (resolution, not an
// explicit spec.md Open Question but an equivalent underspecification): the
// scenarios in spec.md §8 use the same prose "trigger()" for two distinct
// outcomes from Play (S2 starts a new layer, S3 reaches Stop). This port
// exposes them as two operations, Trigger (the primary Idle/Record/Play/Stop
// cycle) and AddLayer (the bounded Play->Record new-layer action), both
// phase-gated identically. See DESIGN.md.

package looper

// LooperState is one state of the Looper's global state machine.
type LooperState int

const (
	LooperIdle LooperState = iota
	LooperRecord
	LooperPlay
	LooperStop
)

func (s LooperState) String() string {
	switch s {
	case LooperIdle:
		return "Idle"
	case LooperRecord:
		return "Record"
	case LooperPlay:
		return "Play"
	case LooperStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

type looperAction int

const (
	actionNone looperAction = iota
	actionTrigger
	actionAddLayer
)

// Looper is the top-level audio node: an ordered, fixed-capacity sequence
// of Tracks, the global playhead/timeline, and quantization of user
// triggers to the first-loop grid.
type Looper struct {
	tracks []*Track
	arena  *Arena

	state            LooperState
	requestedAction  looperAction
	playhead         int
	timeline         int
	activeTrackIndex int

	diag Diagnostics
}

// New constructs a Looper with numLoops tracks sharing one arena of
// arenaSamples capacity, all tracks starting in None, global state Idle.
func New(numLoops, arenaSamples int) *Looper {
	l := &Looper{
		arena: NewArena(arenaSamples),
	}
	l.tracks = make([]*Track, numLoops)
	for i := range l.tracks {
		l.tracks[i] = NewTrack(i, l.arena)
	}
	return l
}

// SetDiagnostics installs the hook used to report non-fatal faults. Pass
// nil to discard diagnostics (the default).
func (l *Looper) SetDiagnostics(d Diagnostics) {
	l.diag = d
	for _, t := range l.tracks {
		t.diag = d
	}
}

// SetMaintenance installs the SD-spill maintenance task, switching every
// track from holding its full recorded span in the arena to spilling it
// through m's TrackStore instead. Pass nil to disable the tier (the
// default): tracks then record straight into the arena as usual.
func (l *Looper) SetMaintenance(m *MaintenanceTask) {
	for _, t := range l.tracks {
		t.maintenance = m
	}
}

// State returns the Looper's current global state.
func (l *Looper) State() LooperState { return l.state }

// IsIdle, IsRecording, IsPlaying report the obvious.
func (l *Looper) IsIdle() bool      { return l.state == LooperIdle }
func (l *Looper) IsRecording() bool { return l.state == LooperRecord }
func (l *Looper) IsPlaying() bool   { return l.state == LooperPlay }

// IsWaiting reports whether a trigger has been latched but has not yet
// committed because the loop phase has not returned to 0.
func (l *Looper) IsWaiting() bool {
	return l.requestedAction != actionNone && l.playhead != 0
}

// Playhead and Timeline expose the global cursors, in blocks.
func (l *Looper) Playhead() int { return l.playhead }
func (l *Looper) Timeline() int { return l.timeline }

// ActiveTrackIndex returns the track currently recording or most recently
// finalized.
func (l *Looper) ActiveTrackIndex() int { return l.activeTrackIndex }

// Track returns the track at index i, or nil if out of range.
func (l *Looper) Track(i int) *Track {
	if i < 0 || i >= len(l.tracks) {
		return nil
	}
	return l.tracks[i]
}

// NumTracks returns the Looper's fixed track capacity.
func (l *Looper) NumTracks() int { return len(l.tracks) }

// Trigger requests the primary state advance: Idle->Record, Record->Play,
// Play->Stop, Stop->Play. It only sets a request; the Looper's own Update
// applies it once the loop phase allows.
func (l *Looper) Trigger() { l.requestedAction = actionTrigger }

// AddLayer requests Play->Record: start recording a new track layered over
// the ones already playing, bounded by the Looper's track capacity. A
// no-op request if capacity is exhausted or the Looper is not in Play.
func (l *Looper) AddLayer() { l.requestedAction = actionAddLayer }

// Reset stops and clears every track in reverse-allocation order and
// returns the Looper to Idle. Bounded: a track that does not settle into
// Stop within resetPollLimit synthetic ticks is force-stopped.
func (l *Looper) Reset() {
	scratchIn := make([]int16, BlockSamples)
	scratchOut := make([]int16, BlockSamples)

	for i := len(l.tracks) - 1; i >= 0; i-- {
		t := l.tracks[i]
		if t.IsNone() {
			continue
		}
		t.Stop()
		for n := 0; n < resetPollLimit && !t.IsStopped(); n++ {
			for k := range scratchOut {
				scratchOut[k] = 0
			}
			t.Update(scratchIn, scratchOut)
		}
		if !t.IsStopped() {
			t.forceStop()
		}
	}
	for i := len(l.tracks) - 1; i >= 0; i-- {
		l.tracks[i].Clear()
	}

	l.state = LooperIdle
	l.requestedAction = actionNone
	l.playhead = 0
	l.timeline = 0
	l.activeTrackIndex = 0
}

// SetVolume forwards to track i's gain envelope.
func (l *Looper) SetVolume(trackIndex int, g float64) {
	if t := l.Track(trackIndex); t != nil {
		t.SetVolume(g)
	}
}

// Mute forwards to track i's mute flag.
func (l *Looper) Mute(trackIndex int, muted bool) {
	if t := l.Track(trackIndex); t != nil {
		t.SetMuted(muted)
	}
}

// SmartMute mutes every track index i > 0 with p <= i/activeCount, where
// activeCount is the number of tracks not in None, and unmutes the others;
// track 0 is never smart-muted.
func (l *Looper) SmartMute(p float64) {
	activeCount := 0
	for _, t := range l.tracks {
		if !t.IsNone() {
			activeCount++
		}
	}
	if activeCount == 0 {
		return
	}
	for i, t := range l.tracks {
		if i == 0 {
			continue
		}
		t.SetMuted(p <= float64(i)/float64(activeCount))
	}
}

// phaseAligned reports whether a gated transition may commit this tick.
func (l *Looper) phaseAligned() bool {
	return l.timeline == 0 || l.playhead == 0
}

// Update is the audio callback entry point. in is read-only of length
// BlockSamples (pass a zeroed slice for silence); out is a writable block
// of the same length that Update fills. If out is nil, the caller's host
// driver failed to produce an output block: the input is consumed and
// dropped, and the playhead does not advance.
func (l *Looper) Update(in, out []int16) {
	if out == nil {
		l.report(EventBlockAllocFail, -1)
		return
	}

	if l.requestedAction != actionNone && l.phaseAligned() {
		l.applyAction()
	} else if l.requestedAction != actionNone && l.playhead != 0 {
		l.report(EventLateTrigger, l.activeTrackIndex)
	}

	for i := range out {
		out[i] = 0
	}

	if l.timeline > 0 {
		// Lockstep with every track's own playhead: a track that finalizes
		// this tick starts its own playhead at 0 and plays index 0 before
		// incrementing to 1, so the global cursor must take the same step
		// (0 -> 1) rather than staying at 0, or the two fall out of phase
		// by one block (see the S2 regression test).
		l.playhead++
		if l.playhead >= l.timeline {
			l.playhead = 0
		}
	}

	for _, t := range l.tracks {
		t.Update(in, out)
	}

	// Arena exhaustion auto-finalizes a recording track without going
	// through applyAction; the Looper's own state follows it here.
	active := l.tracks[l.activeTrackIndex]
	if l.state == LooperRecord && active.State() == TrackPlay {
		l.state = LooperPlay
		if l.timeline == 0 {
			l.timeline = active.TimelineBlocks()
			// The track finalized this tick with no global timeline to
			// advance against; pick up its position to stay in lockstep.
			l.playhead = active.Playhead()
		}
	}
}

func (l *Looper) applyAction() {
	action := l.requestedAction
	l.requestedAction = actionNone

	switch action {
	case actionTrigger:
		l.applyTrigger()
	case actionAddLayer:
		l.applyAddLayer()
	}
}

func (l *Looper) applyTrigger() {
	switch l.state {
	case LooperIdle:
		l.activeTrackIndex = 0
		l.tracks[0].Record()
		l.state = LooperRecord
	case LooperRecord:
		active := l.tracks[l.activeTrackIndex]
		active.Play()
		if l.timeline == 0 {
			l.timeline = active.TimelineBlocks()
		}
		l.state = LooperPlay
	case LooperPlay:
		l.tracks[l.activeTrackIndex].Stop()
		l.state = LooperStop
	case LooperStop:
		l.tracks[l.activeTrackIndex].Play()
		l.state = LooperPlay
	}
}

func (l *Looper) applyAddLayer() {
	if l.state != LooperPlay {
		return
	}
	if l.activeTrackIndex >= len(l.tracks)-1 {
		return
	}
	l.activeTrackIndex++
	l.tracks[l.activeTrackIndex].Record()
	l.state = LooperRecord
}
