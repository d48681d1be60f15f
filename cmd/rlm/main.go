package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/mcp"
	"github.com/rlm-server/rlm/internal/metrics"
	"github.com/rlm-server/rlm/internal/rank"
	"github.com/rlm-server/rlm/internal/search"
	"github.com/rlm-server/rlm/internal/session"
	"github.com/rlm-server/rlm/internal/store"
	"github.com/rlm-server/rlm/internal/tokenizer"
	"github.com/rlm-server/rlm/internal/tokenizer/simple"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"load": true, "append": true, "unload": true, "info": true, "read": true,
	"decompose": true, "chunks": true, "suggest": true,
	"search": true, "find": true, "rank": true,
	"exec": true,
	"var": true, "answer": true,
	"session": true, "metrics": true,
	"help": true,
}

func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   ____  __    __  ___
  / __ \/ /   /  |/  /
 / /_/ / /   / /|_/ /
 \____/_____/_/  /_/

  Reasoning-loop memory server

  Usage: rlm <command> [options]
         rlm --help

  MCP server mode requires piped input.`)
}

// buildRuntime wires every core component into a set of Handlers'
// dependencies: persistence first, then the tokenizer registry, the
// decomposer, ranker, searcher and metrics, and last the session registry,
// which takes the three caches as its invalidators.
func buildRuntime(baseDir string, cfg *config.Config) (mcp.Dependencies, func(), error) {
	persistence, err := store.Open(baseDir, cfg)
	if err != nil {
		return mcp.Dependencies{}, nil, fmt.Errorf("open storage: %w", err)
	}

	tok := tokenizer.NewRegistry(simple.New())
	decomposer := decompose.New(cfg, tok)
	ranker := rank.New(cfg.IndexCacheMaxEntries, cfg.QueryCacheMaxEntries)
	searcher := search.NewSearcher(cfg.ChunkCacheMaxEntries)
	metricsRegistry := metrics.New()

	registry := session.NewRegistry(cfg, persistence, decomposer, ranker, searcher)

	scavengeCtx, cancel := context.WithCancel(context.Background())
	registry.StartScavenger(scavengeCtx)

	cleanup := func() {
		cancel()
		registry.Stop()
		persistence.Close()
	}

	return mcp.Dependencies{
		Registry:    registry,
		Decomposer:  decomposer,
		Ranker:      ranker,
		Searcher:    searcher,
		Tokenizers:  tok,
		Metrics:     metricsRegistry,
		Persistence: persistence,
	}, cleanup, nil
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if isHelpOrVersion() {
		app := newCLIApp(mcp.Dependencies{}, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".rlm")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, cleanup, err := buildRuntime(baseDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if isCLIMode() {
		app := newCLIApp(deps, cfg)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'rlm --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(deps, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
