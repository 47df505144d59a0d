package tlswatch

import (
	"sync"
	"time"
)

// debounced runs the last function it was given once calls stop arriving for
// the configured duration.
type debounced func(func())

func debounce(after time.Duration) debounced {
	d := &debouncer{after: after}
	return d.add
}

type debouncer struct {
	mx    sync.Mutex
	after time.Duration
	timer *time.Timer
}

func (d *debouncer) add(f func()) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.after, f)
}
