package app

import "sync"

// loadProgress counts videos found by the scan worker for the loading screen.
type loadProgress struct {
	mu        sync.Mutex
	processed int
	done      bool
}

func (p *loadProgress) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.processed = 0
	p.done = false
	p.mu.Unlock()
}

func (p *loadProgress) Increment() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
}

func (p *loadProgress) MarkDone() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
}

func (p *loadProgress) Snapshot() (processed int, done bool) {
	if p == nil {
		return 0, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.done
}
