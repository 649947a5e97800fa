package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/cortex-emotion/internal/conversation"
	"github.com/normanking/cortex-emotion/internal/engine"
	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/internal/scheduler"
	"github.com/normanking/cortex-emotion/internal/worker"
)

// request is one JSON line read by serve. Op defaults to "turn".
type request struct {
	Op string `json:"op,omitempty"`
	worker.Job
}

// response is one JSON line written by serve and turn --jsonl.
type response struct {
	ID     string                   `json:"id,omitempty"`
	Op     string                   `json:"op,omitempty"`
	Result *conversation.TurnResult `json:"result,omitempty"`
	State  *conversation.State      `json:"state,omitempty"`
	Stats  *conversation.Stats      `json:"stats,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// lineWriter serializes JSON lines from several goroutines.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &lineWriter{enc: enc}
}

func (w *lineWriter) write(r response) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(r)
}

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Process JSON-lines requests from stdin until EOF or a signal",
		Long: `Read requests as JSON lines from stdin and write one JSON line per
result to stdout. Turns of different sessions run concurrently; turns of one
session keep their order.

Requests:
  {"id":"1","sessionId":"s1","userInput":"hi","responseText":"Hello!"}
  {"op":"state","sessionId":"s1"}
  {"op":"clear","sessionId":"s1"}
  {"op":"stats"}
  {"op":"clear-cache"}

state and clear wait for the session's queued turns.

Sessions are snapshotted on the configured schedule and idle sessions are
pruned. Prometheus metrics are served on --metrics-addr or metrics.addr when
metrics are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, cleanup, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			addr := metricsAddr
			if addr == "" && cfg.Metrics.Enabled {
				addr = cfg.Metrics.Addr
			}

			snapshotExpr := cfg.Snapshot.Schedule
			if cfg.Snapshot.Backend == "none" || cfg.Snapshot.Backend == "" {
				snapshotExpr = ""
			}
			pruneExpr := cfg.Conversation.PruneSchedule
			if cfg.Conversation.IdleTimeout == 0 {
				pruneExpr = ""
			}
			opts := serveOptions{
				SnapshotExpr: snapshotExpr,
				PruneExpr:    pruneExpr,
				MetricsAddr:  addr,
				QueueSize:    cfg.Conversation.QueueSize,
			}
			return serve(ctx, e, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// serveOptions configures serve. Empty expressions disable that job; an
// empty MetricsAddr disables the metrics listener.
type serveOptions struct {
	SnapshotExpr string
	PruneExpr    string
	MetricsAddr  string
	QueueSize    int
}

// sessionPruner releases the worker lanes of pruned sessions.
type sessionPruner struct {
	*engine.Engine
	d *worker.Dispatcher
}

func (p sessionPruner) PruneIdle() []string {
	ids := p.Engine.PruneIdle()
	for _, id := range ids {
		p.d.Release(id)
	}
	return ids
}

// serve runs until in is exhausted or ctx is done. Every accepted request is
// answered before it returns.
func serve(parent context.Context, e *engine.Engine, opts serveOptions, in io.Reader, out io.Writer) error {
	log := cliLogger()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	d := worker.New(e, opts.QueueSize)
	sched, err := scheduler.New(sessionPruner{Engine: e, d: d}, opts.SnapshotExpr, opts.PruneExpr)
	if err != nil {
		return err
	}
	metricsAddr := opts.MetricsAddr

	w := newLineWriter(out)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for r := range d.Results() {
			if err := w.write(resultLine(r)); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		defer d.Close()
		return readRequests(gctx, e, d, in, w)
	})

	if sched.Jobs() > 0 {
		g.Go(func() error { return sched.Run(gctx) })
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Int("sessions", e.EmotionalStats().ActiveConversations).Msg("serve stopped")
	return err
}

// readRequests feeds lines from in to the dispatcher. Scanning runs in its
// own goroutine so a blocked read does not hold up shutdown.
func readRequests(ctx context.Context, e *engine.Engine, d *worker.Dispatcher, in io.Reader, w *lineWriter) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := handleLine(ctx, e, d, strings.TrimSpace(line), w); err != nil {
				return err
			}
		}
	}
}

func resultLine(r worker.Result) response {
	switch r.Job.Kind {
	case worker.KindState:
		if r.State == nil {
			return response{ID: r.Job.ID, Op: "state", Error: fmt.Sprintf("no conversation %q", r.Job.SessionID)}
		}
		return response{ID: r.Job.ID, Op: "state", State: r.State}
	case worker.KindClear:
		return response{ID: r.Job.ID, Op: "clear"}
	default:
		res := r.Turn
		return response{ID: r.Job.ID, Result: &res}
	}
}

func handleLine(ctx context.Context, e *engine.Engine, d *worker.Dispatcher, line string, w *lineWriter) error {
	if line == "" {
		return nil
	}
	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return w.write(response{Error: fmt.Sprintf("decode request: %v", err)})
	}

	switch req.Op {
	case "", "turn", "state", "clear":
		if req.SessionID == "" {
			return w.write(response{ID: req.ID, Op: req.Op, Error: "sessionId is required"})
		}
		job := req.Job
		switch req.Op {
		case "state":
			job.Kind = worker.KindState
		case "clear":
			job.Kind = worker.KindClear
		}
		if err := d.Submit(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return w.write(response{ID: req.ID, Op: req.Op, Error: err.Error()})
		}
		if job.Kind == worker.KindClear {
			d.Release(req.SessionID)
		}
		return nil
	case "stats":
		stats := e.EmotionalStats()
		return w.write(response{ID: req.ID, Op: req.Op, Stats: &stats})
	case "clear-cache":
		e.ClearClassificationCache()
		return w.write(response{ID: req.ID, Op: req.Op})
	default:
		return w.write(response{ID: req.ID, Op: req.Op, Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}
