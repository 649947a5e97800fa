package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortex-emotion/internal/config"
	"github.com/normanking/cortex-emotion/internal/conversation"
	"github.com/normanking/cortex-emotion/internal/engine"
	"github.com/normanking/cortex-emotion/internal/snapshot"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

var _ Processor = (*engine.Engine)(nil)

// recorder notes the order turns reach it, per session, and the most turns
// it ever saw running at once.
type recorder struct {
	mu        sync.Mutex
	seen      map[string][]string
	gate      chan struct{}
	delay     time.Duration
	active    atomic.Int32
	maxActive atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{seen: make(map[string][]string)}
}

func (r *recorder) ProcessConversationTurn(sessionID, userInput, responseText string) conversation.TurnResult {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		peak := r.maxActive.Load()
		if n <= peak || r.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	if r.gate != nil {
		<-r.gate
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.seen[sessionID] = append(r.seen[sessionID], userInput)
	count := len(r.seen[sessionID])
	r.mu.Unlock()
	return conversation.TurnResult{SSML: responseText, Metadata: conversation.TurnMetadata{SessionID: sessionID, TurnCount: count}}
}

func (r *recorder) ConversationState(sessionID string) (conversation.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.seen[sessionID])
	if n == 0 {
		return conversation.State{}, false
	}
	return conversation.State{SessionID: sessionID, TurnCount: n}, true
}

func (r *recorder) ClearConversation(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, sessionID)
}

func (r *recorder) turns(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen[sessionID]...)
}

func collect(d *Dispatcher) <-chan []Result {
	out := make(chan []Result, 1)
	go func() {
		var all []Result
		for r := range d.Results() {
			all = append(all, r)
		}
		out <- all
	}()
	return out
}

func TestDispatcherKeepsSessionOrder(t *testing.T) {
	rec := newRecorder()
	rec.delay = time.Millisecond
	d := New(rec, 4).WithLogger(zerolog.Nop())
	done := collect(d)

	ctx := context.Background()
	sessions := []string{"a", "b", "c"}
	for i := 0; i < 10; i++ {
		for _, s := range sessions {
			require.NoError(t, d.Submit(ctx, Job{ID: fmt.Sprintf("%s-%d", s, i), SessionID: s, UserInput: fmt.Sprint(i)}))
		}
	}
	assert.Equal(t, 3, d.Lanes())

	d.Close()
	results := <-done
	require.Len(t, results, 30)

	for _, s := range sessions {
		want := make([]string, 10)
		for i := range want {
			want[i] = fmt.Sprint(i)
		}
		assert.Equal(t, want, rec.seen[s], "session %s", s)
	}

	last := map[string]int{}
	for _, r := range results {
		assert.Equal(t, r.Job.SessionID, r.Turn.Metadata.SessionID)
		assert.Greater(t, r.Turn.Metadata.TurnCount, last[r.Job.SessionID], "results of one session arrive in order")
		last[r.Job.SessionID] = r.Turn.Metadata.TurnCount
	}
	assert.Equal(t, 0, d.Lanes())
}

func TestDispatcherSubmitAfterClose(t *testing.T) {
	d := New(newRecorder(), 1).WithLogger(zerolog.Nop())
	d.Close()
	d.Close()

	err := d.Submit(context.Background(), Job{SessionID: "x"})
	assert.ErrorIs(t, err, ErrClosed)

	_, open := <-d.Results()
	assert.False(t, open)
}

func TestDispatcherSubmitHonoursContext(t *testing.T) {
	rec := newRecorder()
	rec.gate = make(chan struct{})
	d := New(rec, 1).WithLogger(zerolog.Nop())
	done := collect(d)

	ctx := context.Background()
	require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: "first"}))

	// the lane takes "first" and blocks on the gate; "second" fills the queue
	require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: "second"}))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := d.Submit(short, Job{SessionID: "s", UserInput: "third"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(rec.gate)
	d.Close()
	results := <-done
	require.Len(t, results, 2)
	assert.Equal(t, []string{"first", "second"}, rec.seen["s"])
}

func TestDispatcherRelease(t *testing.T) {
	d := New(newRecorder(), 2).WithLogger(zerolog.Nop())
	done := collect(d)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: "1"}))
	d.Release("s")
	d.Release("unknown")
	require.Eventually(t, func() bool { return d.Lanes() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: "2"}))
	assert.Equal(t, 1, d.Lanes())

	d.Close()
	assert.Len(t, <-done, 2)
}

func TestDispatcherReleaseKeepsQueuedTurnsInOrder(t *testing.T) {
	rec := newRecorder()
	rec.gate = make(chan struct{})
	d := New(rec, 8).WithLogger(zerolog.Nop())
	done := collect(d)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: fmt.Sprintf("a%d", i)}))
	}
	d.Release("s")
	assert.Equal(t, 1, d.Lanes(), "a released lane runs until its queue drains")
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Submit(ctx, Job{SessionID: "s", UserInput: fmt.Sprintf("b%d", i)}))
	}
	assert.Equal(t, 1, d.Lanes())

	close(rec.gate)
	d.Close()
	results := <-done

	var order []string
	for _, r := range results {
		order = append(order, r.Job.UserInput)
	}
	want := []string{"a0", "a1", "a2", "b0", "b1", "b2"}
	assert.Equal(t, want, order)
	assert.Equal(t, want, rec.turns("s"))
	assert.Equal(t, int32(1), rec.maxActive.Load(), "one turn of a session at a time")
}

func TestDispatcherRunsStateAndClearInOrder(t *testing.T) {
	rec := newRecorder()
	rec.gate = make(chan struct{})
	d := New(rec, 8).WithLogger(zerolog.Nop())
	done := collect(d)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, Job{ID: "1", SessionID: "s", UserInput: "hi"}))
	require.NoError(t, d.Submit(ctx, Job{ID: "2", SessionID: "s", Kind: KindState}))
	require.NoError(t, d.Submit(ctx, Job{ID: "3", SessionID: "s", Kind: KindClear}))
	require.NoError(t, d.Submit(ctx, Job{ID: "4", SessionID: "s", Kind: KindState}))

	close(rec.gate)
	d.Close()
	results := <-done
	require.Len(t, results, 4)

	require.NotNil(t, results[1].State, "state sees the turn queued before it")
	assert.Equal(t, 1, results[1].State.TurnCount)
	assert.Equal(t, KindClear, results[2].Job.Kind)
	assert.Nil(t, results[3].State, "cleared before the second state request")
	assert.Empty(t, rec.turns("s"))
}

func TestDispatcherWithEngine(t *testing.T) {
	e, err := engine.New(context.Background(), config.Default(),
		engine.WithStore(snapshot.Discard{}), engine.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	d := New(e, 0).WithLogger(zerolog.Nop())
	done := collect(d)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(ctx, Job{SessionID: "live", UserInput: "I'm so excited about this!", ResponseText: "Great!"}))
	}
	d.Close()
	results := <-done
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i+1, r.Turn.Metadata.TurnCount)
		assert.Equal(t, emotion.Excited, r.Turn.Metadata.UserEmotion.Primary)
	}

	st, ok := e.ConversationState("live")
	require.True(t, ok)
	assert.Equal(t, 5, st.TurnCount)
}
