// diagnostics.go - non-fatal fault reporting hook
//
// Grounded on the teacher's ambient diagnostic style (plain fmt/log calls,
// no structured-logging library anywhere in the example pack) and on
// spec's propagation policy: no failure crosses the audio callback as an
// error return or panic, only as a reported event.

package looper

// Diagnostic event names, reported via the Diagnostics hook. None of these
// are errors in the Go sense: every one is already fully handled by the
// component that raised it.
const (
	EventArenaExhausted  = "arena_exhausted"
	EventBlockAllocFail  = "block_alloc_failed"
	EventLateTrigger     = "late_trigger"
	EventClearRejected   = "clear_rejected"
	EventRingOverrun     = "ring_overrun"
	EventRingUnderrun    = "ring_underrun"
)

// Diagnostics receives a non-fatal event name and the track index it
// concerns, or -1 when the event is not track-specific. The default is nil,
// meaning diagnostics are discarded; hosts that want logging set it to a
// function that forwards to the standard log package.
type Diagnostics func(event string, trackIndex int)

func (l *Looper) report(event string, trackIndex int) {
	if l.diag != nil {
		l.diag(event, trackIndex)
	}
}
