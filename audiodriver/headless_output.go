//go:build headless

package audiodriver

// headlessOutput is a no-op output for hosts with no sound device (CI, the
// looper's own test suite). It holds src but never pulls blocks from it.
type headlessOutput struct {
	src     Source
	started bool
}

// NewOutput returns an Output that never touches real audio hardware and
// never calls src.
func NewOutput(src Source) (Output, error) {
	return &headlessOutput{src: src}, nil
}

func (o *headlessOutput) Start() error    { o.started = true; return nil }
func (o *headlessOutput) Stop()           { o.started = false }
func (o *headlessOutput) Close()          { o.started = false }
func (o *headlessOutput) IsStarted() bool { return o.started }
