package catalogcache

import (
	"strconv"
	"sync"
	"time"

	"github.com/unkn0wn-root/catalogcache/failures"
	"github.com/unkn0wn-root/catalogcache/provider"
)

type runState int

const (
	stateIdle runState = iota
	stateRefreshing
	stateCancelling
)

func (s runState) String() string {
	switch s {
	case stateRefreshing:
		return "refreshing"
	case stateCancelling:
		return "cancelling"
	default:
		return "idle"
	}
}

// Status strings.
const (
	StatusIdle      = "Idle"
	StatusCancelled = "Cancelled"
	StatusFailed    = "Failed or cancelled"
)

func statusCompleted(series int) string {
	return "Completed: " + strconv.Itoa(series) + " series"
}

// Status is the polling view of the engine, shaped for the control surface.
type Status struct {
	IsRefreshing bool       `json:"isRefreshing"`
	Progress     float64    `json:"progress"`
	Status       string     `json:"status"`
	StartTime    *time.Time `json:"startTime"`
	CompleteTime *time.Time `json:"completeTime"`
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Summary describes one finished run.
type Summary struct {
	RunID          uint64         `json:"runId"`
	Trigger        string         `json:"trigger"`
	Outcome        Outcome        `json:"outcome"`
	Categories     int            `json:"categories"`
	Series         int            `json:"series"`
	SeriesFailed   int            `json:"seriesFailed"`
	Seasons        int            `json:"seasons"`
	Episodes       int            `json:"episodes"`
	ArtworkFound   int            `json:"artworkFound"`
	ArtworkMissing int            `json:"artworkMissing"`
	Failures       failures.Stats `json:"failures"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Error          string         `json:"error,omitempty"` // Err's message for JSON consumers
	Err            error          `json:"-"`
}

// CacheStats describes the cache namespace reads are served from.
type CacheStats struct {
	Prefix      string          `json:"prefix"`
	Fingerprint string          `json:"fingerprint"`
	Generation  uint64          `json:"generation"`
	Backend     *provider.Usage `json:"backend,omitempty"`
	Failures    failures.Stats  `json:"failures"`
}

// progress holds the mutable half of Status. The refreshing flag is derived
// from the guard's state, not stored here.
type progress struct {
	mu       sync.RWMutex
	fraction float64
	text     string
	started  time.Time
	finished time.Time
}

func (p *progress) begin(now time.Time) {
	p.mu.Lock()
	p.fraction, p.text = 0, "Starting"
	p.started, p.finished = now, time.Time{}
	p.mu.Unlock()
}

func (p *progress) set(fraction float64, text string) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	p.mu.Lock()
	p.fraction = fraction
	if text != "" {
		p.text = text
	}
	p.mu.Unlock()
}

func (p *progress) finish(now time.Time, text string, fraction float64) {
	p.mu.Lock()
	if fraction >= 0 {
		p.fraction = fraction
	}
	p.text, p.finished = text, now
	p.mu.Unlock()
}

func (p *progress) snapshot(refreshing bool) Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{IsRefreshing: refreshing, Progress: p.fraction, Status: p.text}
	if st.Status == "" {
		st.Status = StatusIdle
	}
	if !p.started.IsZero() {
		t := p.started
		st.StartTime = &t
	}
	if !p.finished.IsZero() {
		t := p.finished
		st.CompleteTime = &t
	}
	return st
}
