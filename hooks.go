package catalogcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// ArtworkMissing and PersistentFailure are called from the refresh loop.
type Hooks interface {
	// A refresh run was started. trigger ∈ {"manual", "scheduled", "reconfigure", ...}
	RefreshStarted(runID uint64, trigger string)

	// TryStartRefresh declined. reason ∈ {"running", "cancelling", "disabled", "closed"}
	RefreshRejected(trigger, reason string)

	// A run reached a terminal state (completed, cancelled or failed).
	RefreshFinished(s Summary)

	// The cache generation moved, by Invalidate here or by another process
	// sharing the generation store; every older key is unreachable.
	Invalidated(generation uint64)

	// No image was found for a series.
	ArtworkMissing(seriesID int, title string)

	// A request target exhausted its retries and was recorded as failing.
	PersistentFailure(target string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RefreshStarted(uint64, string)   {}
func (NopHooks) RefreshRejected(string, string)  {}
func (NopHooks) RefreshFinished(Summary)         {}
func (NopHooks) Invalidated(uint64)              {}
func (NopHooks) ArtworkMissing(int, string)      {}
func (NopHooks) PersistentFailure(string, error) {}
