package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type rule struct {
	match  string
	output string
	err    error
}

// Runner is a scripted platform.Runner. Each command line (or PowerShell
// script) is matched against the registered rules by substring, first match wins.
type Runner struct {
	mu    sync.Mutex
	rules []rule

	// Commands records every command line and script, in call order.
	Commands []string
}

// On registers the output (or error) for commands containing match.
func (r *Runner) On(match, output string, err error) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{match: match, output: output, err: err})
	return r
}

// Last returns the most recent command, or "".
func (r *Runner) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Commands) == 0 {
		return ""
	}
	return r.Commands[len(r.Commands)-1]
}

// Run implements platform.Runner.
func (r *Runner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	return r.respond(strings.Join(append([]string{name}, args...), " "))
}

// PowerShell implements platform.Runner.
func (r *Runner) PowerShell(_ context.Context, script string) ([]byte, error) {
	return r.respond(script)
}

func (r *Runner) respond(command string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Commands = append(r.Commands, command)
	for _, ru := range r.rules {
		if strings.Contains(command, ru.match) {
			if ru.err != nil {
				return nil, ru.err
			}
			return []byte(strings.TrimSpace(ru.output)), nil
		}
	}
	return nil, fmt.Errorf("platformtest: unexpected command %q", command)
}
