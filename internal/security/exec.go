package security

import (
	"fmt"
	"sort"
	"strings"
)

// CommandPolicy decides which subprocesses may be started and with what
// arguments. Commands never pass through a shell, but arguments built from
// repository data are still refused when they carry shell metacharacters.
type CommandPolicy struct {
	// AllowedCommands is the map of commands that are permitted to run.
	AllowedCommands map[string]bool

	// AllowShellMetachars allows shell metacharacters in arguments.
	AllowShellMetachars bool
}

// NewGitPolicy returns the policy for local repository reads: only git.
func NewGitPolicy() *CommandPolicy {
	return &CommandPolicy{
		AllowedCommands: map[string]bool{"git": true},
	}
}

// Validate checks cmdParts against the policy.
func (p *CommandPolicy) Validate(cmdParts []string) error {
	if len(cmdParts) == 0 {
		return fmt.Errorf("empty command")
	}

	if !p.AllowedCommands[cmdParts[0]] {
		return fmt.Errorf("command not allowed: %s (must be one of: %s)",
			cmdParts[0], strings.Join(p.allowedList(), ", "))
	}

	if !p.AllowShellMetachars {
		for i, arg := range cmdParts[1:] {
			if containsShellMetachars(arg) {
				return fmt.Errorf("argument %d contains shell metacharacters: %q", i+1, arg)
			}
		}
	}

	return nil
}

func (p *CommandPolicy) allowedList() []string {
	commands := make([]string, 0, len(p.AllowedCommands))
	for cmd, ok := range p.AllowedCommands {
		if ok {
			commands = append(commands, cmd)
		}
	}
	sort.Strings(commands)
	return commands
}

// containsShellMetachars checks if a string contains shell metacharacters.
func containsShellMetachars(s string) bool {
	return strings.ContainsAny(s, ";|&$`\n><(){}*?[]\\'\"")
}
