// Package worker runs conversation turns concurrently across sessions while
// keeping the turns of any one session in submission order.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/normanking/cortex-emotion/internal/conversation"
	"github.com/normanking/cortex-emotion/internal/logging"
	"github.com/normanking/cortex-emotion/internal/metrics"
)

// DefaultQueueSize is the per-session buffer used when none is given.
const DefaultQueueSize = 16

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Processor handles the requests a lane runs. *engine.Engine satisfies it.
type Processor interface {
	ProcessConversationTurn(sessionID, userInput, responseText string) conversation.TurnResult
	ConversationState(sessionID string) (conversation.State, bool)
	ClearConversation(sessionID string)
}

// Kind selects what a Job does.
type Kind int

const (
	KindTurn Kind = iota
	KindState
	KindClear
)

// Job is one submitted request. ID is opaque to the dispatcher and is echoed
// back in the Result.
type Job struct {
	ID           string `json:"id,omitempty"`
	SessionID    string `json:"sessionId"`
	UserInput    string `json:"userInput"`
	ResponseText string `json:"responseText"`
	Kind         Kind   `json:"-"`
}

// Result pairs a job with its outcome. Turn is set for KindTurn, State for a
// KindState job whose session exists.
type Result struct {
	Job   Job
	Turn  conversation.TurnResult
	State *conversation.State
}

// lane serializes the jobs of one session. pending counts jobs submitted
// but not yet finished; a released lane stops once pending reaches zero.
// Both fields are guarded by Dispatcher.lanesMu.
type lane struct {
	jobs     chan Job
	pending  int
	released bool
	stopped  bool
}

// Dispatcher fans jobs out to one goroutine per session. Results arrive on
// a single channel; results of different sessions may interleave. The
// Results channel must be drained or lanes block.
type Dispatcher struct {
	proc      Processor
	queueSize int
	log       zerolog.Logger

	// mu is held for reading by Submit and for writing by Close, so no send
	// races the closing of a lane.
	mu      sync.RWMutex
	lanesMu sync.Mutex
	lanes   map[string]*lane

	results chan Result
	wg      sync.WaitGroup
	closed  atomic.Bool
	once    sync.Once
}

// New creates a Dispatcher. queueSize <= 0 selects DefaultQueueSize.
func New(proc Processor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		proc:      proc,
		queueSize: queueSize,
		log:       logging.Component("worker"),
		lanes:     make(map[string]*lane),
		results:   make(chan Result, queueSize),
	}
}

// WithLogger replaces the dispatcher logger. Call before the first Submit.
func (d *Dispatcher) WithLogger(l zerolog.Logger) *Dispatcher {
	d.log = l
	return d
}

// Results returns the channel results are delivered on. It is closed once
// Close has drained every lane.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Submit queues job on its session's lane, starting the lane if needed. It
// blocks while the lane is full, until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed.Load() {
		return ErrClosed
	}

	l := d.acquire(job.SessionID)
	select {
	case l.jobs <- job:
		return nil
	case <-ctx.Done():
		d.finish(job.SessionID, l)
		return ctx.Err()
	}
}

// acquire returns the session's lane with one more pending job, starting a
// lane if none is running. A released lane that has not drained yet is
// reused so the session never has two goroutines.
func (d *Dispatcher) acquire(sessionID string) *lane {
	d.lanesMu.Lock()
	defer d.lanesMu.Unlock()

	if l, ok := d.lanes[sessionID]; ok {
		l.released = false
		l.pending++
		return l
	}
	l := &lane{jobs: make(chan Job, d.queueSize), pending: 1}
	d.lanes[sessionID] = l
	metrics.SessionLanes.Inc()

	d.wg.Add(1)
	go d.run(sessionID, l)
	return l
}

// finish marks one job of l done and stops l if it was released and is now idle.
func (d *Dispatcher) finish(sessionID string, l *lane) {
	d.lanesMu.Lock()
	defer d.lanesMu.Unlock()

	l.pending--
	if l.released && l.pending == 0 {
		d.stop(sessionID, l)
	}
}

// stop closes l and forgets it. lanesMu must be held.
func (d *Dispatcher) stop(sessionID string, l *lane) {
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.jobs)
	if d.lanes[sessionID] == l {
		delete(d.lanes, sessionID)
	}
}

func (d *Dispatcher) run(sessionID string, l *lane) {
	defer d.wg.Done()
	defer metrics.SessionLanes.Dec()

	for job := range l.jobs {
		d.results <- d.handle(job)
		d.finish(sessionID, l)
	}
	d.log.Debug().Str("session_id", sessionID).Msg("lane stopped")
}

func (d *Dispatcher) handle(job Job) Result {
	res := Result{Job: job}
	switch job.Kind {
	case KindState:
		if st, ok := d.proc.ConversationState(job.SessionID); ok {
			res.State = &st
		}
	case KindClear:
		d.proc.ClearConversation(job.SessionID)
	default:
		res.Turn = d.proc.ProcessConversationTurn(job.SessionID, job.UserInput, job.ResponseText)
	}
	return res
}

// Release stops the lane of sessionID once its queued jobs finish. A Submit
// for the session before then keeps the lane running; one after starts a
// fresh lane.
func (d *Dispatcher) Release(sessionID string) {
	d.lanesMu.Lock()
	defer d.lanesMu.Unlock()

	l, ok := d.lanes[sessionID]
	if !ok {
		return
	}
	l.released = true
	if l.pending == 0 {
		d.stop(sessionID, l)
	}
}

// Lanes reports the number of running session lanes.
func (d *Dispatcher) Lanes() int {
	d.lanesMu.Lock()
	defer d.lanesMu.Unlock()
	return len(d.lanes)
}

// Close stops accepting jobs, waits for every queued job to finish and then
// closes the Results channel. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.closed.Store(true)

		d.mu.Lock()
		d.lanesMu.Lock()
		for id, l := range d.lanes {
			d.stop(id, l)
		}
		d.lanesMu.Unlock()
		d.mu.Unlock()

		d.wg.Wait()
		close(d.results)
	})
}
