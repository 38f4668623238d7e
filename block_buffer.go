// block_buffer.go - contiguous 16-bit sample window, safe for the audio callback
//
// Grounded on Ram.h (the dual-SPI-chip external RAM abstraction addressed as
// one flat sample index) and memory_bus.go's bounds-checked bulk-transfer
// style, but backed by a single Go slice rather than two chips.

package looper

// BlockBuffer exposes a contiguous region of 16-bit samples and bulk
// transfers of exactly BlockSamples samples at an arbitrary sample offset.
// It never resizes after construction. Two BlockBuffers over disjoint
// regions of the same arena may be accessed concurrently by their owners;
// BlockBuffer itself performs no synchronization — that discipline is the
// caller's (Track never reads/writes outside its own allocated region).
type BlockBuffer struct {
	region []int16
}

// NewBlockBuffer wraps region (typically an Arena.Slice) as a BlockBuffer.
func NewBlockBuffer(region []int16) *BlockBuffer {
	return &BlockBuffer{region: region}
}

// CapacitySamples returns the number of samples addressable in this buffer.
func (b *BlockBuffer) CapacitySamples() int { return len(b.region) }

// Read copies BlockSamples samples starting at offsetSamples into dst.
// dst must have length BlockSamples.
func (b *BlockBuffer) Read(offsetSamples int, dst []int16) {
	copy(dst, b.region[offsetSamples:offsetSamples+BlockSamples])
}

// Write copies BlockSamples samples from src into the buffer starting at
// offsetSamples. src must have length BlockSamples.
func (b *BlockBuffer) Write(offsetSamples int, src []int16) {
	copy(b.region[offsetSamples:offsetSamples+BlockSamples], src)
}
