package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/catalogcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ArtworkMissingEvery    uint64
	PersistentFailureEvery uint64
	RejectedEvery          uint64
	// Optional target redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	missingCtr  atomic.Uint64
	failureCtr  atomic.Uint64
	rejectedCtr atomic.Uint64
}

var _ catalogcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RefreshStarted(runID uint64, trigger string) {
	if h.l == nil {
		return
	}
	h.l.Info("catalogcache.refresh_started",
		"run_id", runID,
		"trigger", trigger)
}

func (h *Hooks) RefreshRejected(trigger, reason string) {
	if h.l == nil || !sample(h.opts.RejectedEvery, &h.rejectedCtr) {
		return
	}
	h.l.Debug("catalogcache.refresh_rejected",
		"trigger", trigger,
		"reason", reason)
}

func (h *Hooks) RefreshFinished(s catalogcache.Summary) {
	if h.l == nil {
		return
	}
	level := slog.LevelInfo
	if s.Outcome == catalogcache.OutcomeFailed {
		level = slog.LevelError
	}
	h.l.Log(context.Background(), level, "catalogcache.refresh_finished",
		"run_id", s.RunID,
		"outcome", string(s.Outcome),
		"series", s.Series,
		"series_failed", s.SeriesFailed,
		"episodes", s.Episodes,
		"artwork_found", s.ArtworkFound,
		"artwork_missing", s.ArtworkMissing,
		"failing_targets", s.Failures.Count,
		"took", s.FinishedAt.Sub(s.StartedAt),
		"err", s.Err)
}

func (h *Hooks) Invalidated(generation uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("catalogcache.invalidated",
		"generation", generation)
}

func (h *Hooks) ArtworkMissing(seriesID int, title string) {
	if h.l == nil || !sample(h.opts.ArtworkMissingEvery, &h.missingCtr) {
		return
	}
	h.l.Debug("catalogcache.artwork_missing",
		"series_id", seriesID,
		"title", title)
}

func (h *Hooks) PersistentFailure(target string, err error) {
	if h.l == nil || !sample(h.opts.PersistentFailureEvery, &h.failureCtr) {
		return
	}
	h.l.Warn("catalogcache.persistent_failure",
		"target", h.redact(target),
		"err", err)
}
