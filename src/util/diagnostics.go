package util

import "sync"

// Diagnostics collects errors reported from independent convert runs so a multi-file cmd/irc
// invocation can report every failing file instead of aborting at the first (SPEC_FULL.md §5:
// "util.Perror's channel-based aggregator is kept only as an optional multi-function diagnostic
// collector in the CLI driver"). Adapted from the teacher's perror: channel-fed, mutex-guarded buffer,
// generalized from a worker-thread error sink to a batch-conversion error sink.
type Diagnostics struct {
	listen chan error // Channel for receiving error reports.
	stop   chan error // Sending on this channel stops the listener.
	errors []error
	sync.Mutex
}

// defaultDiagnosticsBuffer is the fallback pre-allocated slot count when n <= 0.
const defaultDiagnosticsBuffer = 16

// NewDiagnostics returns a Diagnostics collector with n pre-allocated error slots and starts its
// listener goroutine.
func NewDiagnostics(n int) *Diagnostics {
	if n < 1 {
		n = defaultDiagnosticsBuffer
	}
	d := &Diagnostics{
		listen: make(chan error),
		stop:   make(chan error),
		errors: make([]error, 0, n),
	}
	go d.run()
	return d
}

func (d *Diagnostics) run() {
	defer close(d.listen)
	for {
		select {
		case err := <-d.listen:
			d.Lock()
			d.errors = append(d.errors, err)
			d.Unlock()
		case <-d.stop:
			return
		}
	}
}

// Len returns the number of buffered errors.
func (d *Diagnostics) Len() int {
	d.Lock()
	defer d.Unlock()
	return len(d.errors)
}

// Stop sends the stop signal to the listener. Must be called exactly once, after every Report call.
func (d *Diagnostics) Stop() {
	defer close(d.stop)
	d.stop <- nil
}

// Report sends err to the listener. Nil errors are ignored.
func (d *Diagnostics) Report(err error) {
	if err != nil {
		d.listen <- err
	}
}

// Errors returns a buffered channel carrying every error reported so far.
func (d *Diagnostics) Errors() <-chan error {
	d.Lock()
	defer d.Unlock()
	c := make(chan error, len(d.errors))
	for _, e := range d.errors {
		c <- e
	}
	close(c)
	return c
}
