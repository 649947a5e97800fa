package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/cortex-emotion/internal/engine"
	"github.com/normanking/cortex-emotion/internal/worker"
)

// maxLineBytes bounds one JSON-lines request.
const maxLineBytes = 1 << 20

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func turnCmd() *cobra.Command {
	var (
		sessionID string
		user      string
		reply     string
		jsonl     bool
	)

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Process conversation turns",
		Long: `Process one conversation turn, or a stream of turns as JSON lines on
stdin with --jsonl. Session state is persisted through the configured
snapshot backend, so consecutive invocations continue the same session.

Examples:
  cortex-emotion turn --session s1 --user "How does this work?" --response "Let me explain."
  cortex-emotion turn --jsonl < turns.jsonl

Each JSON line looks like:
  {"sessionId":"s1","userInput":"hi","responseText":"Hello!"}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if jsonl {
				return processTurns(e, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			res := e.ProcessConversationTurn(sessionID, user, reply)
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&user, "user", "", "user input")
	cmd.Flags().StringVar(&reply, "response", "", "response text to render")
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "read turns as JSON lines from stdin")
	return cmd
}

// processTurns runs each JSON line of in as a turn, in order, and writes one
// JSON result line per turn.
func processTurns(e *engine.Engine, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var job worker.Job
		if err := json.Unmarshal([]byte(text), &job); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if job.SessionID == "" {
			return fmt.Errorf("line %d: sessionId is required", line)
		}
		res := e.ProcessConversationTurn(job.SessionID, job.UserInput, job.ResponseText)
		if err := enc.Encode(response{ID: job.ID, Result: &res}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func stateCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "state <session>",
		Short: "Show or clear a conversation's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if forget {
				e.ClearConversation(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			}
			st, ok := e.ConversationState(args[0])
			if !ok {
				return fmt.Errorf("no conversation %q", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.Flags().BoolVar(&forget, "clear", false, "forget the conversation")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics over stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			return writeJSON(cmd.OutOrStdout(), e.EmotionalStats())
		},
	}
}
