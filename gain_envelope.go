// gain_envelope.go - sample-accurate linear gain fade
//
// Grounded almost line-for-line on GainControl.h: the same four gain fields
// and block_counter, the same startFadeTo/get/update/hardReset shape.

package looper

// GainEnvelope is a linear fade from a start gain to a target gain spanning
// FadeBlocks blocks, sample-accurate within a block. It is idempotent within
// a block: get(k) depends only on the current fade state, never on prior
// get calls in the same block.
type GainEnvelope struct {
	userGain     float64
	targetGain   float64
	startGain    float64
	currentGain  float64
	blockCounter int
}

// NewGainEnvelope returns an envelope already settled at gain g.
func NewGainEnvelope(g float64) *GainEnvelope {
	e := &GainEnvelope{}
	e.HardReset(g)
	return e
}

// SetGain updates the user-facing gain setting. If the envelope is not
// currently muted (or heading toward mute), the live target is retargeted
// to g; otherwise the new value only takes effect on the next Unmute.
func (e *GainEnvelope) SetGain(g float64) {
	e.userGain = g
	if !e.IsMuted() {
		e.startFadeTo(e.userGain)
	}
}

// IsDone reports whether the current fade has completed.
func (e *GainEnvelope) IsDone() bool {
	return e.blockCounter >= FadeBlocks
}

// Mute retargets the envelope to 0.
func (e *GainEnvelope) Mute() {
	e.startFadeTo(0)
}

// Unmute retargets the envelope to the last user gain.
func (e *GainEnvelope) Unmute() {
	e.startFadeTo(e.userGain)
}

// SetMuted is a convenience forward to Mute/Unmute by boolean.
func (e *GainEnvelope) SetMuted(muted bool) {
	if muted {
		e.Mute()
	} else {
		e.Unmute()
	}
}

// IsMuted reports whether the envelope's target is exactly 0.
func (e *GainEnvelope) IsMuted() bool {
	return e.targetGain == 0
}

// IsMuteDone reports whether the envelope is both muted and settled there.
func (e *GainEnvelope) IsMuteDone() bool {
	return e.IsMuted() && e.IsDone()
}

// HardReset snaps all four gain fields to g and marks the fade complete.
func (e *GainEnvelope) HardReset(g float64) {
	e.userGain = g
	e.targetGain = g
	e.startGain = g
	e.currentGain = g
	e.blockCounter = FadeBlocks
}

// Get returns the interpolated gain at sampleIndex within the current
// block. Safe to call from the audio callback. It records the value in
// currentGain (where a retarget continues from) but never changes the
// start gain, target gain or block counter.
func (e *GainEnvelope) Get(sampleIndex int) float64 {
	if e.IsDone() {
		return e.targetGain
	}
	totalSamples := float64(FadeBlocks * BlockSamples)
	pos := float64(e.blockCounter*BlockSamples + sampleIndex)
	t := pos / totalSamples
	if t > 1 {
		t = 1
	}
	e.currentGain = e.startGain + (e.targetGain-e.startGain)*t
	return e.currentGain
}

// Update advances the fade by one block. Must be called exactly once per
// block by the envelope's owner.
func (e *GainEnvelope) Update() {
	if e.blockCounter < FadeBlocks {
		e.blockCounter++
	}
	if e.blockCounter >= FadeBlocks {
		e.currentGain = e.targetGain
	}
}

// startFadeTo begins a new fade toward newTarget, continuing from wherever
// the envelope currently is so the resulting curve has no discontinuity.
func (e *GainEnvelope) startFadeTo(newTarget float64) {
	if e.targetGain == newTarget && e.IsDone() {
		return
	}
	e.startGain = e.currentGain
	e.targetGain = newTarget
	e.blockCounter = 0
}
