package client

import (
	"sync"
	"time"
)

const DefaultDebounceInterval = 500 * time.Millisecond

// SaveFunc persists the latest value submitted for key.
type SaveFunc func(key, value string) error

// Debouncer coalesces edits per key: a value is saved once no newer value
// for the same key arrived within the quiet interval. Saves run one at a
// time, in the order their values were taken.
type Debouncer struct {
	interval time.Duration
	save     SaveFunc
	onError  func(key string, err error)

	saveMu  sync.Mutex
	mu      sync.Mutex
	pending map[string]string
	timers  map[string]*time.Timer
	// gens counts submits per key; a timer only saves if no newer submit
	// happened since it was armed.
	gens   map[string]uint64
	closed bool
}

func NewDebouncer(interval time.Duration, save SaveFunc, onError func(key string, err error)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Debouncer{
		interval: interval,
		save:     save,
		onError:  onError,
		pending:  make(map[string]string),
		timers:   make(map[string]*time.Timer),
		gens:     make(map[string]uint64),
	}
}

// Submit records value as the latest edit for key and restarts its quiet
// interval. It reports false after Close.
func (d *Debouncer) Submit(key, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pending[key] = value
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.gens[key]++
	gen := d.gens[key]
	d.timers[key] = time.AfterFunc(d.interval, func() { d.fire(key, gen) })
	return true
}

// Pending reports the unsaved value for key, if any.
func (d *Debouncer) Pending(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.pending[key]
	return v, ok
}

// PendingAll returns a copy of every unsaved value.
func (d *Debouncer) PendingAll() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.pending))
	for k, v := range d.pending {
		out[k] = v
	}
	return out
}

func (d *Debouncer) fire(key string, gen uint64) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	stale := d.gens[key] != gen
	d.mu.Unlock()
	if stale {
		return
	}
	value, ok := d.take(key)
	if !ok {
		return
	}
	if err := d.save(key, value); err != nil {
		d.onError(key, err)
	}
}

func (d *Debouncer) take(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	value, ok := d.pending[key]
	if !ok {
		return "", false
	}
	delete(d.pending, key)
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
	return value, true
}

// Flush saves every pending value now and returns the first error.
func (d *Debouncer) Flush() error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.mu.Unlock()

	var first error
	for _, k := range keys {
		value, ok := d.take(k)
		if !ok {
			continue
		}
		if err := d.save(k, value); err != nil {
			d.onError(k, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close refuses further edits and flushes what is pending.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Flush()
}
