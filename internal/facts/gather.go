// Package facts gathers host facts by running shell commands through a
// Runner and parsing their output into a typed map.
package facts

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"

	"hostlink/internal/domain"
	"hostlink/internal/logging"

	"github.com/rs/zerolog"
)

// Runner executes a shell command and returns its standard output
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// LocalRunner runs commands on this machine with sh -c
type LocalRunner struct{}

func (LocalRunner) Run(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).Output()
	return string(out), err
}

// Gatherer runs a command set and merges the parsed facts
type Gatherer struct {
	Runner         Runner
	Commands       []Command
	CommandTimeout time.Duration
	log            zerolog.Logger
}

// NewGatherer creates a gatherer with DefaultCommands
func NewGatherer(r Runner) *Gatherer {
	return &Gatherer{
		Runner:         r,
		Commands:       DefaultCommands,
		CommandTimeout: 30 * time.Second,
		log:            logging.For("facts"),
	}
}

// Gather runs every command and merges the results into a Map. A command
// that fails or whose output does not parse is skipped. Gather fails only
// when no command produced facts or ctx ends first.
func (g *Gatherer) Gather(ctx context.Context) (domain.Value, error) {
	merged := make(map[string]any)
	var lastErr error

	for _, cmd := range g.Commands {
		if err := ctx.Err(); err != nil {
			return domain.Value{}, domain.Classify(err)
		}

		output, err := g.run(ctx, cmd.Command)
		if err != nil {
			g.log.Debug().Str("command", cmd.Name).Err(err).Msg("fact command failed")
			lastErr = err
			continue
		}

		parsed, err := cmd.Parser(output)
		if err != nil {
			g.log.Debug().Str("command", cmd.Name).Err(err).Msg("fact output did not parse")
			lastErr = err
			continue
		}
		for k, v := range parsed {
			merged[k] = v
		}
	}

	if len(merged) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no fact commands configured")
		}
		return domain.Value{}, domain.Wrap(domain.Internal, lastErr, "no facts gathered")
	}

	g.log.Debug().Int("facts", len(merged)).Msg("facts gathered")
	return domain.FromAny(merged)
}

func (g *Gatherer) run(ctx context.Context, command string) (string, error) {
	if g.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.CommandTimeout)
		defer cancel()
	}
	return g.Runner.Run(ctx, command)
}

// Local gathers facts about this machine: the shell command set plus what the
// Go runtime reports directly
func Local(ctx context.Context) (domain.Value, error) {
	runtimeFacts := map[string]any{
		"cpu_cores":    runtime.NumCPU(),
		"architecture": runtime.GOARCH,
		"os":           runtime.GOOS,
	}

	v, err := NewGatherer(LocalRunner{}).Gather(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Value{}, domain.Classify(ctx.Err())
		}
		// no usable shell; runtime facts still describe the host
		return domain.FromAny(runtimeFacts)
	}

	entries, _ := v.Entries()
	for k, raw := range runtimeFacts {
		if _, ok := entries[k]; !ok {
			entries[k] = domain.MustFromAny(raw)
		}
	}
	return domain.NewMap(entries), nil
}
