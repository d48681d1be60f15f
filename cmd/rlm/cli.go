package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/rlm-server/rlm/internal/config"
	"github.com/rlm-server/rlm/internal/contenthash"
	"github.com/rlm-server/rlm/internal/decompose"
	"github.com/rlm-server/rlm/internal/errors"
	"github.com/rlm-server/rlm/internal/mcp"
	"github.com/rlm-server/rlm/internal/search"
	"github.com/rlm-server/rlm/internal/textctx"
)

// newCLIApp creates the CLI application with every local subcommand. Each
// command drives the same core components the MCP tool handlers do,
// directly rather than through the RPC envelope, for scripting and
// operator use without a running MCP session.
func newCLIApp(deps mcp.Dependencies, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "rlm",
		Usage:   "Reasoning-loop memory server",
		Version: Version,
		Commands: []*cli.Command{
			loadCmd(deps, cfg),
			appendCmd(deps, cfg),
			unloadCmd(deps),
			infoCmd(deps),
			readCmd(deps),
			decomposeCmd(deps),
			chunksCmd(deps),
			suggestCmd(deps),
			searchCmd(deps),
			findCmd(deps),
			rankCmd(deps),
			execCmd(deps, cfg),
			varCmd(deps),
			answerCmd(deps, cfg),
			sessionCmd(deps),
			metricsCmd(deps),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func loadCmd(deps mcp.Dependencies, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Create or replace a context (reads text from stdin)",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if contextID == "" {
				return outputError(errors.NewMissingField("context_id"))
			}
			text, err := readStdin(stdinLimit(cfg))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := deps.Registry.Load(c.String("session"), contextID, text); err != nil {
				return outputError(err)
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"context_id": ctx.ID, "metadata": ctx.Metadata})
		},
	}
}

func appendCmd(deps mcp.Dependencies, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "Append or prepend to a context (reads text from stdin)",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
			&cli.StringFlag{Name: "mode", Value: "append", Usage: "append|prepend"},
			&cli.BoolFlag{Name: "create", Usage: "create the context if missing"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if contextID == "" {
				return outputError(errors.NewMissingField("context_id"))
			}
			text, err := readStdin(stdinLimit(cfg))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			mode := textctx.ModeAppend
			if c.String("mode") == "prepend" {
				mode = textctx.ModePrepend
			}
			if err := deps.Registry.Append(c.String("session"), contextID, text, mode, c.Bool("create")); err != nil {
				return outputError(err)
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"context_id": ctx.ID, "metadata": ctx.Metadata})
		},
	}
}

func unloadCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "unload",
		Usage:     "Drop a context from live memory",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if contextID == "" {
				return outputError(errors.NewMissingField("context_id"))
			}
			if err := deps.Registry.Unload(c.String("session"), contextID); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"context_id": contextID, "unloaded": true})
		},
	}
}

func infoCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show a context's metadata",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if contextID == "" {
				return outputError(errors.NewMissingField("context_id"))
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"context_id": ctx.ID, "metadata": ctx.Metadata})
		},
	}
}

func readCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Print a context's content, optionally a line range",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
			&cli.IntFlag{Name: "start-line", Value: 0},
			&cli.IntFlag{Name: "end-line", Value: 0},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			if contextID == "" {
				return outputError(errors.NewMissingField("context_id"))
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			content := ctx.Content
			if c.Int("start-line") > 0 || c.Int("end-line") > 0 {
				start := c.Int("start-line")
				if start < 1 {
					start = 1
				}
				end := c.Int("end-line")
				if end < 1 {
					end = -1
				}
				content = linesRange(ctx.Content, start, end)
			}
			fmt.Println(content)
			return nil
		},
	}
}

func decomposeCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "decompose",
		Usage:     "Split a context into chunks",
		ArgsUsage: "<context-id> <strategy>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().Get(0)
			strategy := c.Args().Get(1)
			if contextID == "" || strategy == "" {
				return outputError(errors.NewMissingField("context_id/strategy"))
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			chunks, err := deps.Decomposer.Decompose(c.String("session"), contextID, strategy, nil, ctx.Content, contenthash.Hash(ctx.Content))
			if err != nil {
				return outputError(err)
			}
			rec, err := deps.Registry.StoreDecomposition(c.String("session"), contextID, strategy, nil, len(chunks))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"decompose_id": rec.ID, "chunk_count": len(chunks)})
		},
	}
}

func chunksCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "chunks",
		Usage:     "Print chunks for a decomposition",
		ArgsUsage: "<context-id> [decompose-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().Get(0)
			decomposeID := c.Args().Get(1)
			rec, err := deps.Registry.LookupDecomposition(c.String("session"), contextID, decomposeID)
			if err != nil {
				return outputError(err)
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), rec.ContextID)
			if err != nil {
				return outputError(err)
			}
			chunks, err := deps.Decomposer.Decompose(c.String("session"), rec.ContextID, rec.Strategy, rec.Options, ctx.Content, contenthash.Hash(ctx.Content))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"chunks": chunks})
		},
	}
}

func suggestCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Recommend a decomposition strategy",
		ArgsUsage: "<context-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().First()
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(decompose.SuggestStrategy(ctx.Content))
		},
	}
}

func searchCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Regex search a context",
		ArgsUsage: "<context-id> <pattern>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
			&cli.BoolFlag{Name: "case-sensitive"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().Get(0)
			pattern := c.Args().Get(1)
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			opts := search.Options{CaseSensitive: c.Bool("case-sensitive")}
			matches, err := deps.Searcher.SearchRegex(c.String("session"), contextID, pattern, opts, ctx.Content, contenthash.Hash(ctx.Content))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"matches": matches, "count": len(matches)})
		},
	}
}

func findCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "Substring scan a context",
		ArgsUsage: "<context-id> <needle>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
			&cli.BoolFlag{Name: "case-sensitive"},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().Get(0)
			needle := c.Args().Get(1)
			ctx, err := deps.Registry.GetContext(c.String("session"), contextID)
			if err != nil {
				return outputError(err)
			}
			matches := deps.Searcher.FindAll(c.String("session"), contextID, needle, c.Bool("case-sensitive"), 0, ctx.Content, contenthash.Hash(ctx.Content))
			return outputJSON(map[string]any{"matches": matches, "count": len(matches)})
		},
	}
}

func rankCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:      "rank",
		Usage:     "BM25-rank a decomposition's chunks against a query",
		ArgsUsage: "<context-id> <query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
			&cli.IntFlag{Name: "top-k", Value: 10},
		},
		Action: func(c *cli.Context) error {
			contextID := c.Args().Get(0)
			query := c.Args().Get(1)
			rec, err := deps.Registry.LookupDecomposition(c.String("session"), contextID, "")
			if err != nil {
				return outputError(err)
			}
			ctx, err := deps.Registry.GetContext(c.String("session"), rec.ContextID)
			if err != nil {
				return outputError(err)
			}
			chunks, err := deps.Decomposer.Decompose(c.String("session"), rec.ContextID, rec.Strategy, rec.Options, ctx.Content, contenthash.Hash(ctx.Content))
			if err != nil {
				return outputError(err)
			}
			entry := deps.Ranker.Index(c.String("session"), rec.ContextID, rec.Strategy, rec.Options, chunks, contenthash.Hash(ctx.Content), "auto")
			results := deps.Ranker.Rank(c.String("session"), rec.ContextID, rec.Strategy, rec.Options, entry, query, c.Int("top-k"), 0, "auto")
			return outputJSON(map[string]any{"results": results})
		},
	}
}

func execCmd(deps mcp.Dependencies, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "exec",
		Usage: "Run a sandboxed expression against a session (reads code from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
		},
		Action: func(c *cli.Context) error {
			code, err := readStdin(stdinLimit(cfg))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			h := mcp.NewHandlers(deps.Registry, deps.Decomposer, deps.Ranker, deps.Searcher, deps.Tokenizers, deps.Metrics, deps.Persistence, cfg)
			record := h.RunSandboxed(c.Context, c.String("session"), code)
			return outputJSON(record)
		},
	}
}

func varCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "var",
		Usage: "Get or set a session variable",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				ArgsUsage: "<name> <json-value>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
				},
				Action: func(c *cli.Context) error {
					name := c.Args().Get(0)
					raw := c.Args().Get(1)
					var value any
					if raw != "" {
						if err := json.Unmarshal([]byte(raw), &value); err != nil {
							value = raw
						}
					}
					if err := deps.Registry.SetVariable(c.String("session"), name, value); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"name": name, "set": true})
				},
			},
			{
				Name:      "get",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
				},
				Action: func(c *cli.Context) error {
					name := c.Args().Get(0)
					value, ok, err := deps.Registry.GetVariable(c.String("session"), name)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"name": name, "value": value, "found": ok})
				},
			},
		},
	}
}

func answerCmd(deps mcp.Dependencies, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "answer",
		Usage: "Get or set the session's answer state",
		Subcommands: []*cli.Command{
			{
				Name: "set",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
					&cli.BoolFlag{Name: "ready"},
				},
				Action: func(c *cli.Context) error {
					content, err := readStdin(stdinLimit(cfg))
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					if err := deps.Registry.SetAnswer(c.String("session"), content, c.Bool("ready")); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"set": true})
				},
			},
			{
				Name: "get",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: "default"},
				},
				Action: func(c *cli.Context) error {
					answer, err := deps.Registry.GetAnswer(c.String("session"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(answer)
				},
			},
		},
	}
}

func sessionCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Session lifecycle",
		Subcommands: []*cli.Command{
			{
				Name: "create",
				Action: func(c *cli.Context) error {
					id, err := deps.Registry.CreateSession()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"session_id": id})
				},
			},
			{
				Name:      "info",
				ArgsUsage: "<session-id>",
				Action: func(c *cli.Context) error {
					stats, err := deps.Registry.Stats(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(stats)
				},
			},
			{
				Name:      "clear",
				ArgsUsage: "<session-id>",
				Action: func(c *cli.Context) error {
					if err := deps.Registry.Clear(c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"cleared": true})
				},
			},
		},
	}
}

func metricsCmd(deps mcp.Dependencies) *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Print the process-wide metrics snapshot",
		Action: func(c *cli.Context) error {
			return outputJSON(deps.Metrics.Snapshot())
		},
	}
}

// Helper functions

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputError(err error) error {
	if rlmErr, ok := err.(*errors.RLMError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rlmErr.Code, rlmErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// defaultStdinLimit bounds readStdin when no config is available, such as
// the --help/--version invocation path that never touches storage.
const defaultStdinLimit = 100 * 1024 * 1024

// stdinLimit mirrors the context size a loaded context is allowed to reach,
// so piped input can't grow a context past what the registry would accept
// anyway.
func stdinLimit(cfg *config.Config) int64 {
	if cfg == nil || cfg.ContextMaxBytes <= 0 {
		return defaultStdinLimit
	}
	return cfg.ContextMaxBytes
}

func readStdin(limit int64) (string, error) {
	if !stdinHasData() {
		return "", errors.NewMissingField("stdin")
	}
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", errors.NewContextTooLarge(int(limit), len(data))
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// linesRange returns the inclusive 1-based [startLine, endLine] span of
// content, joined back with "\n". endLine < 0 means "to the last line".
func linesRange(content string, startLine, endLine int) string {
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}
	if startLine < 1 {
		startLine = 1
	}
	if endLine < 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) || endLine < startLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
