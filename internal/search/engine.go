package search

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dawgsconnect/jobboard/types"
)

// Remote runs equality-filtered queries against the data service.
type Remote interface {
	Query(ctx context.Context, filter map[string]string) ([]types.JobPosting, error)
}

// Result is the outcome of one search.
type Result struct {
	Seq      uint64
	Jobs     []types.JobPosting
	Fallback bool
}

// Engine delegates filtered searches to the data service and falls back to
// the last known collection when the service fails.
type Engine struct {
	remote Remote
	logger logrus.FieldLogger

	mu    sync.RWMutex
	known []types.JobPosting

	seq atomic.Uint64
}

func NewEngine(remote Remote, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{remote: remote, logger: logger}
}

// SetKnown replaces the collection used for unfiltered results and fallbacks.
func (e *Engine) SetKnown(jobs []types.JobPosting) {
	known := append([]types.JobPosting(nil), jobs...)
	e.mu.Lock()
	e.known = known
	e.mu.Unlock()
}

// Known returns a copy of the last known collection.
func (e *Engine) Known() []types.JobPosting {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]types.JobPosting{}, e.known...)
}

// Search never reports a data service failure: the same criteria are then
// applied to the known collection and Fallback is set.
func (e *Engine) Search(ctx context.Context, c Criteria) Result {
	seq := e.seq.Add(1)
	if !c.Active() {
		return Result{Seq: seq, Jobs: e.Known()}
	}

	jobs, err := e.remote.Query(ctx, c.RemoteFilter())
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"seq":      seq,
			"job_type": c.JobType,
			"industry": c.Industry,
		}).WithError(err).Warn("remote job search failed, filtering known jobs")
		return Result{Seq: seq, Jobs: Filter(e.Known(), c), Fallback: true}
	}
	return Result{Seq: seq, Jobs: Filter(jobs, c)}
}

// Tracker numbers outgoing searches so that a response arriving after a
// newer search was dispatched can be dropped.
type Tracker struct {
	latest atomic.Uint64
}

// Dispatch returns the sequence number for a new search.
func (t *Tracker) Dispatch() uint64 {
	return t.latest.Add(1)
}

// Accept reports whether the response for seq is still the latest.
func (t *Tracker) Accept(seq uint64) bool {
	return seq == t.latest.Load()
}
