package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"boruna/internal/capability"
	"boruna/internal/obslog"
	"boruna/internal/value"
)

func logLevel(cmd *cobra.Command) slog.Level {
	s, _ := cmd.Flags().GetString("log-level")
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func newLogger(cmd *cobra.Command, component string) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cmd)})
	return obslog.New(component, h)
}

// loadPolicy reads a Policy from path, or falls back to AllowAll when
// path is empty — a CLI run with no --policy is the "trusted local
// execution" case spec.md §3 describes for tooling and tests.
func loadPolicy(path string) (*capability.Policy, error) {
	if path == "" {
		return capability.AllowAll(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("E_POLICY: read %s: %w", path, err)
	}
	var p capability.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("E_POLICY: parse %s: %w", path, err)
	}
	return &p, nil
}

// buildHandler assembles the composite capability handler a CLI-driven
// run uses: real filesystem/clock/random via LocalHandler, real HTTP
// via HTTPHandler, a DbQueryHandler only when a driver/dsn pair was
// given, and a MockHandler fallback for anything else (actor.spawn and
// ui.emit are handled by the VM/runtime directly, never dispatched
// here).
func buildHandler(policy *capability.Policy, dbDriver, dbDSN string) capability.Handler {
	local := capability.LocalHandler{}
	byKind := map[capability.Kind]capability.Handler{
		capability.KindFsRead:   local,
		capability.KindFsWrite:  local,
		capability.KindTimeNow:  local,
		capability.KindRandom:   local,
		capability.KindNetFetch: capability.NewHTTPHandler(policy.NetPolicy),
	}
	if dbDriver != "" {
		byKind[capability.KindDbQuery] = capability.NewDbQueryHandler(dbDriver, dbDSN)
	}
	return capability.NewDispatchHandler(byKind, capability.NewMockHandler(nil))
}

// parseArgValue converts a single --arg string into a Value, trying
// the scalar kinds a module entry point commonly takes before falling
// back to treating it as a string literal.
func parseArgValue(s string) value.Value {
	if s == "true" {
		return value.Bool(true)
	}
	if s == "false" {
		return value.Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	return value.String(s)
}

func parseArgs(raw []string) []value.Value {
	args := make([]value.Value, len(raw))
	for i, s := range raw {
		args[i] = parseArgValue(s)
	}
	return args
}

func printResult(out io.Writer, v value.Value) {
	fmt.Fprintf(out, "%s : %s\n", v.String(), value.TypeName(v))
}
