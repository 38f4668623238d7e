// maintenance.go - SD-spill variant: drains/refills SRAM rings to storage
//
// Grounded directly on Memory.h's MemorySd.update() (flush-then-refill
// loop, BATCH_SIZE-blocks-per-pass, looping the read cursor at the file
// size once the track is finalized), translated from Arduino's
// __disable_irq() critical sections to RingBuffer's atomic cursors.
//
// This is the optional SD-spill tier described in spec.md §2/§4.5: the
// default Track/Looper path records directly into the shared Arena
// (the SRAM-only variant). MaintenanceTask adds, per track, a pair of
// SRAM rings bridging the audio callback to TrackStore, for hosts that
// choose to spill recorded audio to persistent storage instead of holding
// it all in the arena. The audio callback only ever touches the ring's
// Push/Pop; MaintenanceTask performs the batched, potentially-blocking
// storage calls from the cooperative main-loop context.

package looper

// BatchSize is the number of blocks moved per flush or refill pass.
const BatchSize = 32

// TrackRings is one track's SRAM ring pair: input collects blocks recorded
// by the audio callback awaiting a flush to storage; output holds blocks
// already fetched from storage awaiting playback.
type TrackRings struct {
	Input  *RingBuffer
	Output *RingBuffer

	closed bool // set once the track has been finalized (Record->Play)
	cursor int  // next block index to fetch from storage
}

// NewTrackRings allocates a ring pair sized to hold at least BatchSize
// blocks each.
func NewTrackRings() *TrackRings {
	return &TrackRings{
		Input:  NewRingBuffer(BatchSize * 2),
		Output: NewRingBuffer(BatchSize * 2),
	}
}

// Close marks the track as finalized: future refills loop the read cursor
// back to the start of the file instead of advancing past the end.
func (r *TrackRings) Close() { r.closed = true }

// MaintenanceTask periodically drains each track's input ring to storage
// and refills its output ring from storage. It never blocks the audio
// callback: all storage I/O happens inside Run, called from a cooperative
// goroutine, not from Looper.Update.
type MaintenanceTask struct {
	store  TrackStore
	rings  map[int]*TrackRings
	diag   Diagnostics
}

// NewMaintenanceTask returns a task that spills through store.
func NewMaintenanceTask(store TrackStore) *MaintenanceTask {
	return &MaintenanceTask{
		store: store,
		rings: make(map[int]*TrackRings),
	}
}

// SetDiagnostics installs the non-fatal fault reporting hook.
func (m *MaintenanceTask) SetDiagnostics(d Diagnostics) { m.diag = d }

// Register associates trackID with a fresh ring pair and returns it so the
// audio callback can push recorded blocks and pop playback blocks.
func (m *MaintenanceTask) Register(trackID int) *TrackRings {
	r := NewTrackRings()
	m.rings[trackID] = r
	return r
}

// Unregister drops a track's ring pair and its storage file, mirroring
// Track.Clear's arena reclamation.
func (m *MaintenanceTask) Unregister(trackID int) error {
	delete(m.rings, trackID)
	return m.store.Remove(trackID)
}

// Run performs one maintenance pass over every registered track: drain up
// to BatchSize blocks of input, then refill output until it is full (or the
// store runs dry), fetching up to BatchSize blocks per store call.
func (m *MaintenanceTask) Run() {
	for trackID, r := range m.rings {
		m.drain(trackID, r)
		m.refill(trackID, r)
	}
}

func (m *MaintenanceTask) drain(trackID int, r *TrackRings) {
	batch := make([]Block, 0, BatchSize)
	scratch := make(Block, BlockSamples)
	for i := 0; i < BatchSize; i++ {
		if !r.Input.Pop(scratch) {
			break
		}
		block := make(Block, BlockSamples)
		copy(block, scratch)
		batch = append(batch, block)
	}
	if len(batch) == 0 {
		return
	}
	if err := m.store.Flush(trackID, batch); err != nil {
		m.report(EventRingOverrun, trackID)
	}
}

func (m *MaintenanceTask) refill(trackID int, r *TrackRings) {
	wrapped := false
	for r.Output.Free() > 0 {
		want := r.Output.Free()
		if want > BatchSize {
			want = BatchSize
		}
		blocks, err := m.store.Fetch(trackID, r.cursor, want)
		if err != nil || len(blocks) == 0 {
			if r.closed && !wrapped && r.cursor > 0 {
				// Looped past the recorded file once; wrap the read
				// cursor back to the start for looped playback.
				r.cursor = 0
				wrapped = true
				continue
			}
			m.report(EventRingUnderrun, trackID)
			return
		}
		for _, b := range blocks {
			if !r.Output.Push(b) {
				return
			}
			r.cursor++
		}
	}
}

func (m *MaintenanceTask) report(event string, trackIndex int) {
	if m.diag != nil {
		m.diag(event, trackIndex)
	}
}
