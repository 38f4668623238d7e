// constants.go - fixed build-time parameters for the looper core

package looper

// Audio format and timing. SampleRate and BlockSamples together fix the
// callback period.
const (
	SampleRate   = 44100
	BlockSamples = 128

	// NumLoops is the track capacity of a Looper. Reference hardware ships
	// with 8; the state machine places no hard upper bound other than the
	// index type.
	NumLoops = 8

	// TotalArenaSamples is the size of the shared sample arena all tracks
	// draw from, in 16-bit samples (~16 MiB at 16 bit).
	TotalArenaSamples = 8_388_608

	// FadeBlocks is the width, in blocks, of every linear gain fade and of
	// the crossfade tail recorded at loop finalization.
	FadeBlocks = 3

	// FeedbackMultiplier scales the combined overdub signal (new input plus
	// existing loop content) before it is written back during Overdub.
	FeedbackMultiplier = 0.95

	// resetPollLimit bounds how many synthetic ticks Reset runs while
	// waiting for a track to report itself stopped before force-stopping it.
	resetPollLimit = 100
)

// clampSample hard-clips to the signed 16-bit PCM range.
func clampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
