// Package flood limits how many resolution requests a single client may issue.
package flood

import (
	"sort"
	"sync"
	"time"
)

const (
	// cleanupInterval is how often idle clients are forgotten
	cleanupInterval = 10 * time.Minute
	// minIdleTimeout is the shortest silence after which a client is forgotten
	minIdleTimeout = 10 * time.Minute
)

// Floodgate admits at most limit requests per client within any sliding window.
type Floodgate struct {
	limit       int
	window      time.Duration
	idleTimeout time.Duration
	clients     map[string]*clientWindow
	mutex       sync.RWMutex
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// clientWindow holds the admitted request times of one client, oldest first.
type clientWindow struct {
	admitted []time.Time
	lastSeen time.Time
}

// New creates a Floodgate admitting limit requests per client per window.
func New(limit int, window time.Duration) *Floodgate {
	idle := window
	if idle < minIdleTimeout {
		idle = minIdleTimeout
	}

	fg := &Floodgate{
		limit:       limit,
		window:      window,
		idleTimeout: idle,
		clients:     make(map[string]*clientWindow),
		stopCleanup: make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop ends the background cleanup. Safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() {
		close(fg.stopCleanup)
	})
}

// Allow records a request from clientID and reports whether it is within the limit.
// Rejected requests are not counted against the window.
func (fg *Floodgate) Allow(clientID string) bool {
	return fg.allowAt(clientID, time.Now())
}

func (fg *Floodgate) allowAt(clientID string, now time.Time) bool {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cw, exists := fg.clients[clientID]
	if !exists {
		cw = &clientWindow{}
		fg.clients[clientID] = cw
	}
	cw.lastSeen = now
	cw.expire(now.Add(-fg.window))

	if len(cw.admitted) >= fg.limit {
		return false
	}

	cw.admitted = append(cw.admitted, now)
	return true
}

// expire drops admitted times at or before windowStart.
func (cw *clientWindow) expire(windowStart time.Time) {
	first := sort.Search(len(cw.admitted), func(i int) bool {
		return cw.admitted[i].After(windowStart)
	})
	if first > 0 {
		cw.admitted = append(cw.admitted[:0], cw.admitted[first:]...)
	}
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			fg.forgetIdle(now)
		case <-fg.stopCleanup:
			return
		}
	}
}

func (fg *Floodgate) forgetIdle(now time.Time) {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := now.Add(-fg.idleTimeout)
	for clientID, cw := range fg.clients {
		if cw.lastSeen.Before(cutoff) {
			delete(fg.clients, clientID)
		}
	}
}

// GetStats returns a snapshot of the limiter state.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.RLock()
	defer fg.mutex.RUnlock()

	return Stats{
		ActiveClients: len(fg.clients),
		Limit:         fg.limit,
		Window:        fg.window,
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveClients int           `json:"active_clients"`
	Limit         int           `json:"limit"`
	Window        time.Duration `json:"window"`
}
