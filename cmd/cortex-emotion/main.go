// Package main is the entry point for the cortex-emotion CLI. It classifies
// text, maps emotions to voice parameters, renders speech markup and runs
// emotionally consistent conversations, either one command at a time or as a
// long-running JSON-lines service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/cortex-emotion/internal/config"
	"github.com/normanking/cortex-emotion/internal/engine"
	"github.com/normanking/cortex-emotion/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	useAI   bool

	cfg       *config.Config
	logCloser io.Closer = io.NopCloser(nil)
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cortex-emotion",
		Short: "Expressive speech emotion engine",
		Long: `cortex-emotion picks the emotion of a response and renders it as
speech markup with matching voice parameters.

Classify text:         cortex-emotion analyze "I can't wait to try this!"
Render markup:         cortex-emotion ssml --emotion calm "Take a deep breath."
Run a conversation:    cortex-emotion turn --session s1 --user "hi" --response "Hello!"
Serve JSON lines:      cortex-emotion serve < turns.jsonl`,
		SilenceUsage:       true,
		PersistentPreRunE:  initRuntime,
		PersistentPostRunE: closeRuntime,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.cortex/emotion.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&useAI, "ai", false, "classify user input with the configured completion provider")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortex-emotion v%s\n", version)
		},
	})

	root.AddCommand(analyzeCmd())
	root.AddCommand(voiceCmd())
	root.AddCommand(ssmlCmd())
	root.AddCommand(turnCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())

	return root
}

// ═══════════════════════════════════════════════════════════════════════════════
// RUNTIME
// ═══════════════════════════════════════════════════════════════════════════════

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.DefaultPath()
}

func initRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadFromPath(getConfigPath())
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if verbose {
		loaded.Logging.Level = "debug"
	}
	if useAI {
		loaded.Classifier.UseAI = true
	}
	cfg = loaded

	logger, closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	logCloser = closer
	logger.Debug().Str("config", getConfigPath()).Msg("configuration loaded")
	return nil
}

func closeRuntime(cmd *cobra.Command, args []string) error {
	return logCloser.Close()
}

// openEngine builds an engine from the loaded configuration. The returned
// cleanup flushes a final snapshot.
func openEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, func(), error) {
	e, err := engine.New(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := e.Close(ctx); err != nil {
			log := logging.Component("cli")
			log.Error().Err(err).Msg("closing engine")
		}
	}
	return e, cleanup, nil
}

// openStatelessEngine builds an engine that neither restores nor persists
// sessions, for the single-shot commands.
func openStatelessEngine(ctx context.Context) (*engine.Engine, error) {
	c := *cfg
	c.Snapshot.Backend = "none"
	return engine.New(ctx, &c, engine.WithoutRestore())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func textArg(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func cliLogger() zerolog.Logger {
	return logging.Component("cli")
}
