package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

// Backend names accepted by Options.Backend
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

type Options struct {
	App               string
	Version           string
	Commit            string
	Backend           string
	Level             slog.Level
	StacktraceLevel   slog.Level
	JSONFormat        bool
	MaxErrorLinks     int
	IncludeErrorLinks bool
	Writer            io.Writer
}

// New builds a Logger for the requested backend, slog when empty
func New(opts Options) (Logger, error) {
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}
	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = 8
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendSlog:
		return newSlog(opts), nil
	case BackendZap:
		return newZap(opts)
	default:
		return nil, fmt.Errorf("unknown log backend %q (valid backends are slog|zap)", opts.Backend)
	}
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %s (valid levels are debug|info|warn|error)", s)
	}
}

// baseFields are attached to every record regardless of backend
func baseFields(opts Options) []any {
	kv := []any{"app", opts.App}
	if opts.Version != "" {
		kv = append(kv, "version", opts.Version)
	}
	if opts.Commit != "" {
		kv = append(kv, "commit", opts.Commit)
	}
	return kv
}

// errorFields expands err into the structured keys both backends emit
func errorFields(err error, includeLinks bool, maxLinks int) []any {
	if err == nil {
		return nil
	}
	surface, root := classifyTypes(err)
	kv := []any{
		"err", err,
		"error_type", surface,
		"cause_type", root,
	}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if includeLinks {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}
