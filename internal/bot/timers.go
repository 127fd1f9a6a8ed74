package bot

import (
	"sort"
	"sync"
	"time"
)

// Timer names tracked per session. Every exit path cancels through
// cancelAll, so a timer can never outlive its session.
const (
	timerConnectGuard    = "connectGuard"
	timerJoinMessages    = "joinMessages"
	timerWorldMessages   = "worldMessages"
	timerSneak           = "sneak"
	timerAntiIdle        = "antiIdle"
	timerAntiIdleActions = "antiIdleActions"
	timerSpam            = "spam"
	timerJumpPulse       = "jumpPulse"
	timerInventoryFlush  = "inventoryFlush"
)

// timerEntry identifies one registration under a name, so a fired timer can
// tell whether the slot still belongs to it or to a replacement.
type timerEntry struct {
	cancel func()
}

// timerSet tracks every scheduled timer of one session under a single lock.
// Once stopped it refuses new registrations, closing the race where a
// callback re-arms a timer while the session is tearing down.
type timerSet struct {
	mu      sync.Mutex
	stopped bool
	entries map[string]*timerEntry
}

func newTimerSet() *timerSet {
	return &timerSet{entries: make(map[string]*timerEntry)}
}

// set registers an entry under name, replacing (and cancelling) any previous
// timer under the same name. Returns false when the set is already stopped;
// the caller must not start the timer in that case.
func (t *timerSet) set(name string, entry *timerEntry) bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	prev := t.entries[name]
	t.entries[name] = entry
	t.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return true
}

func (t *timerSet) clear(name string) {
	t.mu.Lock()
	entry := t.entries[name]
	delete(t.entries, name)
	t.mu.Unlock()

	if entry != nil {
		entry.cancel()
	}
}

// release drops the slot only while it still belongs to owner. A timer that
// fires at the same instant a new one is armed under its name must not cancel
// the replacement.
func (t *timerSet) release(name string, owner *timerEntry) {
	t.mu.Lock()
	if t.entries[name] == owner {
		delete(t.entries, name)
	}
	t.mu.Unlock()
}

// cancelAll stops every tracked timer and marks the set terminal.
func (t *timerSet) cancelAll() {
	t.mu.Lock()
	t.stopped = true
	entries := make([]*timerEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.entries = make(map[string]*timerEntry)
	t.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
}

// after schedules fn once after d.
func (t *timerSet) after(name string, d time.Duration, fn func()) {
	entry := &timerEntry{}
	timer := time.AfterFunc(d, func() {
		t.release(name, entry)
		fn()
	})
	entry.cancel = func() { timer.Stop() }
	if !t.set(name, entry) {
		timer.Stop()
	}
}

// every schedules fn on a fixed interval until cancelled.
func (t *timerSet) every(name string, d time.Duration, fn func()) {
	stop := make(chan struct{})
	if !t.set(name, &timerEntry{cancel: func() { close(stop) }}) {
		return
	}

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// timedAction is one step of a staggered schedule: run fires offset after the
// schedule starts.
type timedAction struct {
	offset time.Duration
	run    func()
}

// runSchedule executes a declarative (offset, action) list on one goroutine,
// so cancelling the named timer cancels the whole chain at once. ok gates
// each step; when it returns false the remaining steps are skipped.
func (t *timerSet) runSchedule(name string, actions []timedAction, ok func() bool) {
	sorted := make([]timedAction, len(actions))
	copy(sorted, actions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })

	stop := make(chan struct{})
	entry := &timerEntry{cancel: func() { close(stop) }}
	if !t.set(name, entry) {
		return
	}

	go func() {
		start := time.Now()
		for _, action := range sorted {
			wait := action.offset - time.Since(start)
			if wait > 0 {
				select {
				case <-stop:
					return
				case <-time.After(wait):
				}
			} else {
				select {
				case <-stop:
					return
				default:
				}
			}
			if ok != nil && !ok() {
				break
			}
			action.run()
		}
		t.release(name, entry)
	}()
}
