// track_test.go - Track state machine, recording, playback, overdub

package looper

import "testing"

func makeToneBlock(amplitude int16, phase, freq int) []int16 {
	b := make([]int16, BlockSamples)
	for i := range b {
		if ((phase+i)/freq)%2 == 0 {
			b[i] = amplitude
		} else {
			b[i] = -amplitude
		}
	}
	return b
}

func runBlocks(tr *Track, n int, in []int16) {
	silence := make([]int16, BlockSamples)
	out := make([]int16, BlockSamples)
	src := in
	if src == nil {
		src = silence
	}
	for i := 0; i < n; i++ {
		for k := range out {
			out[k] = 0
		}
		tr.Update(src, out)
	}
}

func TestTrackRecordThenPlayReproducesInput(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)

	tone := makeToneBlock(1000, 0, 20)

	tr.Record()
	runBlocks(tr, 1, tone) // consumes the Record() request and records block 0
	if tr.State() != TrackRecord {
		t.Fatalf("state after first record tick=%v, want Record", tr.State())
	}
	// Record 4 more blocks of the same tone (5 total).
	runBlocks(tr, 4, tone)
	if tr.TimelineBlocks() != 5 {
		t.Fatalf("timeline=%d, want 5", tr.TimelineBlocks())
	}

	tr.Play()
	silence := make([]int16, BlockSamples)
	out := make([]int16, BlockSamples)
	tr.Update(silence, out) // consumes Play() request, finalizes, plays block 0
	if tr.State() != TrackPlay {
		t.Fatalf("state after Play()=%v, want Play", tr.State())
	}

	// Play through the FadeBlocks-wide crossfade window (playheads 1..3).
	for i := 0; i < FadeBlocks; i++ {
		for k := range out {
			out[k] = 0
		}
		tr.Update(silence, out)
	}
	for k := range out {
		out[k] = 0
	}
	tr.Update(silence, out)
	// This tick plays block 4 of 5, past the FadeBlocks crossfade window,
	// so the output should equal the recorded tone.
	for i := 0; i < BlockSamples; i++ {
		if out[i] != tone[i] {
			t.Fatalf("out[%d]=%d, want %d (loop identity)", i, out[i], tone[i])
		}
	}
}

func TestTrackOverdubMixesAndWritesBack(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)

	tone := makeToneBlock(1000, 0, 20)
	tr.Record()
	runBlocks(tr, 4, tone)
	tr.Play()
	silence := make([]int16, BlockSamples)
	out := make([]int16, BlockSamples)
	tr.Update(silence, out)

	tr.Overdub()
	overdub := makeToneBlock(500, 0, 40)
	for k := range out {
		out[k] = 0
	}
	tr.Update(overdub, out)
	if tr.State() != TrackOverdub {
		t.Fatalf("state after Overdub()=%v, want Overdub", tr.State())
	}
	// The overdub mix is written back over block 1.
	written := make([]int16, BlockSamples)
	tr.buffer.Read(1*BlockSamples, written)
	for i := 0; i < BlockSamples; i++ {
		want := clampSample(int32((float64(overdub[i]) + float64(tone[i])) * FeedbackMultiplier))
		if written[i] != want {
			t.Fatalf("written-back sample %d=%d, want %d", i, written[i], want)
		}
	}
	// The tick's output plays the loop content read before the write-back,
	// so it is not silent.
	allZero := true
	for _, v := range out {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatalf("overdub tick produced silent output")
	}
}

func TestTrackClearRejectedWhilePlaying(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	tr.Record()
	runBlocks(tr, 2, makeToneBlock(1000, 0, 20))
	tr.Play()
	runBlocks(tr, 1, nil)

	if tr.Clear() {
		t.Fatalf("clear while Playing should be rejected")
	}
}

func TestTrackStopFadesThenSettles(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	tr.Record()
	runBlocks(tr, 2, makeToneBlock(1000, 0, 20))
	tr.Play()
	runBlocks(tr, 1, nil)

	tr.Stop()
	runBlocks(tr, 1, nil)
	if tr.State() != TrackPlay {
		t.Fatalf("state right after Stop() request=%v, want Play (fade in progress)", tr.State())
	}
	runBlocks(tr, FadeBlocks, nil)
	if tr.State() != TrackStop {
		t.Fatalf("state after fade completes=%v, want Stop", tr.State())
	}
	if tr.Playhead() != 0 {
		t.Fatalf("playhead while Stopped=%d, want 0", tr.Playhead())
	}
}

func TestTrackClearAfterStopReclaimsArena(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	tr.Record()
	runBlocks(tr, 2, makeToneBlock(1000, 0, 20))
	tr.Play()
	runBlocks(tr, 1, nil)
	tr.Stop()
	runBlocks(tr, 1+FadeBlocks, nil)

	if !tr.Clear() {
		t.Fatalf("clear on a stopped, LIFO-eligible track should succeed")
	}
	if tr.State() != TrackNone {
		t.Fatalf("state after clear=%v, want None", tr.State())
	}
	if arena.Cursor() != 0 {
		t.Fatalf("arena cursor after clearing the only track=%d, want 0", arena.Cursor())
	}
}

func TestTrackClearRejectedReportsEvent(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	tr.Record()
	runBlocks(tr, 2, makeToneBlock(1000, 0, 20))
	tr.Play()
	runBlocks(tr, 1, nil)

	var events []string
	tr.diag = func(event string, trackIndex int) { events = append(events, event) }
	if tr.Clear() {
		t.Fatalf("clear while Playing should be rejected")
	}
	found := false
	for _, e := range events {
		if e == EventClearRejected {
			found = true
		}
	}
	if !found {
		t.Fatalf("rejected clear should report EventClearRejected, got %v", events)
	}
}

func TestTrackSDSpillWiresRingsThroughMaintenance(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	store := newMockTrackStore()
	task := NewMaintenanceTask(store)
	tr.maintenance = task

	tone := makeToneBlock(1000, 0, 20)
	tr.Record()
	runBlocks(tr, 4, tone)
	if tr.rings == nil {
		t.Fatalf("recording should have registered the track with the maintenance task")
	}
	if tr.rings.Input.Available() != 4 {
		t.Fatalf("input ring available=%d, want 4 (one per recorded block)", tr.rings.Input.Available())
	}

	tr.Play()
	silence := make([]int16, BlockSamples)
	out := make([]int16, BlockSamples)
	tr.Update(silence, out) // consumes Play(), finalizes, closes the ring pair

	task.Run() // drains the recorded blocks to storage, refills the output ring

	if len(store.data[0]) != 4 {
		t.Fatalf("blocks flushed to storage=%d, want 4", len(store.data[0]))
	}
	if tr.rings.Output.Available() == 0 {
		t.Fatalf("output ring should have been refilled from storage")
	}

	var events []string
	tr.diag = func(event string, trackIndex int) { events = append(events, event) }
	for k := range out {
		out[k] = 0
	}
	tr.Update(silence, out)
	for _, e := range events {
		if e == EventRingUnderrun {
			t.Fatalf("play tick underran the output ring right after a maintenance refill")
		}
	}
}

func TestTrackClearUnregistersMaintenance(t *testing.T) {
	arena := NewArena(TotalArenaSamples)
	tr := NewTrack(0, arena)
	store := newMockTrackStore()
	task := NewMaintenanceTask(store)
	tr.maintenance = task

	tr.Record()
	runBlocks(tr, 2, makeToneBlock(1000, 0, 20))
	tr.Play()
	runBlocks(tr, 1, nil)
	tr.Stop()
	runBlocks(tr, 1+FadeBlocks, nil)

	if !tr.Clear() {
		t.Fatalf("clear on a stopped track should succeed")
	}
	if store.removeCalls != 1 {
		t.Fatalf("clear should unregister the track's storage file, remove calls=%d", store.removeCalls)
	}
	if tr.rings != nil {
		t.Fatalf("rings should be dropped after clear")
	}
}

func TestTrackArenaExhaustionAutoFinalizes(t *testing.T) {
	small := NewArena(2*BlockSamples + FadeBlocks*BlockSamples)
	tr := NewTrack(0, small)
	tr.Record()
	runBlocks(tr, 10, makeToneBlock(1000, 0, 20))

	if tr.State() != TrackPlay {
		t.Fatalf("state after exhausting the arena=%v, want Play (auto-finalized)", tr.State())
	}
	if tr.TimelineBlocks() != 2 {
		t.Fatalf("timeline after auto-finalize=%d, want 2", tr.TimelineBlocks())
	}
}
