package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rlm-server/rlm/internal/config"
)

// Record is one execution's full outcome: its code, captured output,
// return value, an error message if it failed, and its wall-clock cost.
// Failures never surface as an error from Sandbox.Run; they are recorded
// here, matching the isolation contract that a script's mistake is data,
// not an RPC fault.
type Record struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Output     string `json:"output"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	StartedAt  int64  `json:"started_at"`
}

// History is a bounded FIFO of past executions, per session.
type History struct {
	mu      sync.Mutex
	depth   int
	entries []*Record
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = 100
	}
	return &History{depth: depth}
}

func (h *History) Push(r *Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, r)
	if len(h.entries) > h.depth {
		h.entries = h.entries[len(h.entries)-h.depth:]
	}
}

func (h *History) Entries() []*Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Record, len(h.entries))
	copy(out, h.entries)
	return out
}

// outputBuffer accumulates print/log lines up to a character cap, marking
// the tail with a suffix once truncated rather than dropping silently.
type outputBuffer struct {
	maxChars  int
	buf       strings.Builder
	truncated bool
}

func (b *outputBuffer) writeLine(s string) {
	if b.truncated {
		return
	}
	if b.buf.Len() > 0 {
		b.buf.WriteByte('\n')
	}
	b.buf.WriteString(s)
	if b.maxChars > 0 && b.buf.Len() > b.maxChars {
		b.truncated = true
	}
}

func (b *outputBuffer) String() string {
	s := b.buf.String()
	if !b.truncated || b.maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > b.maxChars {
		runes = runes[:b.maxChars]
	}
	return string(runes) + "\n...[output truncated]"
}

// Sandbox runs scripted code against a bound Host under a hard time budget,
// with output truncation and a per-session execution history.
type Sandbox struct {
	host            Host
	history         *History
	timeoutMs       int64
	outputMaxChars  int
	regexMaxMatches int
}

// NewSandbox builds a Sandbox reading its resource limits from cfg.
func NewSandbox(host Host, cfg *config.Config) *Sandbox {
	return &Sandbox{
		host:            host,
		history:         NewHistory(cfg.ExecHistoryDepth),
		timeoutMs:       cfg.ExecTimeoutMs,
		outputMaxChars:  cfg.ExecOutputMaxChars,
		regexMaxMatches: cfg.ExecRegexMaxMatches,
	}
}

// Run parses and executes code, pushing the resulting Record onto history
// regardless of outcome and returning it to the caller.
func (s *Sandbox) Run(ctx context.Context, id, code string) *Record {
	started := time.Now()
	rec := &Record{ID: id, Code: code, StartedAt: started.Unix()}

	body, err := parseBody(code)
	if err != nil {
		rec.Error = "invalid code: " + err.Error()
		rec.DurationMs = time.Since(started).Milliseconds()
		s.history.Push(rec)
		return rec
	}

	timeoutMs := s.timeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	out := &outputBuffer{maxChars: s.outputMaxChars}
	in := &interpreter{ctx: runCtx, helpers: make(map[string]func([]any) any)}
	registerHelpers(in, s.host, out, s.regexMaxMatches)

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("sandbox error: %v", r)}
			}
		}()
		v, runErr := in.run(newEnv(nil), body)
		done <- outcome{val: v, err: runErr}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			rec.Error = res.err.Error()
		} else {
			rec.Result = res.val
		}
	case <-runCtx.Done():
		rec.Error = "execution exceeded the time budget"
	}

	rec.Output = out.String()
	rec.DurationMs = time.Since(started).Milliseconds()
	s.history.Push(rec)
	return rec
}
