package trace

import (
	"sync"
	"time"
)

// Heartbeat periodically emits a liveness event while a long batch runs,
// so a stuck image shows up as heartbeats with no span ends.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	progress func() string
	stopCh   chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// StartHeartbeat starts emitting every interval. progress, if not nil,
// supplies the event detail. It returns nil when tracing is disabled.
func StartHeartbeat(tracer Tracer, interval time.Duration, progress func() string) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		progress: progress,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ev := &Event{Time: time.Now(), Kind: KindHeartbeat, Scope: ScopeCommand, Name: "heartbeat"}
			if h.progress != nil {
				ev.Detail = h.progress()
			}
			h.tracer.Emit(ev)
		case <-h.stopCh:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. Safe on nil.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
