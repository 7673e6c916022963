package shell

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// PrepareEnv builds the isolated environment for a command. PWD carries the
// logical working directory so shells report workspace paths, while PATH is
// inherited so system toolchains stay reachable.
func (r *Runner) PrepareEnv(logicalCwd string) map[string]string {
	env := map[string]string{
		"PWD":      logicalCwd,
		"SHELL":    "/bin/bash",
		"USER":     "user",
		"HOME":     "/home/user",
		"PATH":     pathOrDefault(),
		"TERM":     "xterm-256color",
		"LANG":     "en_US.UTF-8",
		"LC_ALL":   "en_US.UTF-8",
		"HOSTNAME": "isolated-env",
		"TZ":       "UTC",
	}
	for k, v := range r.workspaceEnv {
		env[k] = v
	}
	for k, v := range r.sessionEnv {
		env[k] = v
	}
	return env
}

func pathOrDefault() string {
	if p := os.Getenv("PATH"); p != "" {
		return p
	}
	return "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// SetWorkspaceEnv seeds workspace-level variables that persist across
// sessions.
func (r *Runner) SetWorkspaceEnv(key, value string) {
	r.workspaceEnv[key] = value
}

// IsEnvCommand reports whether the command manipulates the session
// environment and should be handled internally instead of being executed.
func IsEnvCommand(command string) bool {
	trimmed := strings.TrimSpace(command)
	return strings.HasPrefix(trimmed, "export ") ||
		strings.HasPrefix(trimmed, "unset ") ||
		trimmed == "env"
}

// HandleEnvCommand interprets export/unset/env against the session
// environment. The bool result is false when the command is not an
// environment command.
func (r *Runner) HandleEnvCommand(command, logicalCwd string) (*Result, bool) {
	trimmed := strings.TrimSpace(command)

	switch {
	case strings.HasPrefix(trimmed, "export "):
		assignment := strings.TrimSpace(trimmed[len("export "):])
		eq := strings.Index(assignment, "=")
		if eq < 0 {
			return &Result{
				Command:   command,
				Directory: logicalCwd,
				Stderr:    "export: Invalid syntax. Use: export VAR=value\n",
				ExitCode:  1,
				Message:   "Export command failed: Invalid syntax",
			}, true
		}
		key := strings.TrimSpace(assignment[:eq])
		value := strings.TrimSpace(assignment[eq+1:])

		singleQuoted := len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\''
		doubleQuoted := len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"'
		if singleQuoted || doubleQuoted {
			value = value[1 : len(value)-1]
		}
		// Single quotes suppress expansion, everything else expands.
		if !singleQuoted {
			value = ExpandVariables(value, r.PrepareEnv(logicalCwd))
		}

		r.sessionEnv[key] = value
		return &Result{
			Command:   command,
			Directory: logicalCwd,
			Message:   fmt.Sprintf("Exported %s=%s", key, value),
		}, true

	case strings.HasPrefix(trimmed, "unset "):
		name := strings.TrimSpace(trimmed[len("unset "):])
		if _, ok := r.sessionEnv[name]; ok {
			delete(r.sessionEnv, name)
			return &Result{
				Command:   command,
				Directory: logicalCwd,
				Message:   fmt.Sprintf("Unset %s from session environment", name),
			}, true
		}
		if _, ok := r.workspaceEnv[name]; ok {
			delete(r.workspaceEnv, name)
			return &Result{
				Command:   command,
				Directory: logicalCwd,
				Message:   fmt.Sprintf("Unset %s from workspace environment", name),
			}, true
		}
		return &Result{
			Command:   command,
			Directory: logicalCwd,
			Message:   fmt.Sprintf("Variable %s was not set", name),
		}, true

	case trimmed == "env":
		env := r.PrepareEnv(logicalCwd)
		lines := make([]string, 0, len(env))
		for k, v := range env {
			lines = append(lines, k+"="+v)
		}
		sort.Strings(lines)
		return &Result{
			Command:   command,
			Directory: logicalCwd,
			Stdout:    strings.Join(lines, "\n") + "\n",
			Message:   "Environment variables listed",
		}, true
	}

	return nil, false
}

// ExpandVariables substitutes $VAR and ${VAR} references outside single
// quotes. Unset variables expand to the empty string.
func ExpandVariables(command string, env map[string]string) string {
	var result strings.Builder
	inSingle := false
	inDouble := false

	i := 0
	for i < len(command) {
		ch := command[i]

		if ch == '\'' && !inDouble {
			inSingle = !inSingle
			result.WriteByte(ch)
			i++
			continue
		}
		if ch == '"' && !inSingle {
			inDouble = !inDouble
			result.WriteByte(ch)
			i++
			continue
		}

		if ch == '$' && !inSingle && i+1 < len(command) {
			next := command[i+1]
			if next == '{' {
				end := strings.IndexByte(command[i:], '}')
				if end >= 0 {
					name := command[i+2 : i+end]
					result.WriteString(env[name])
					i += end + 1
					continue
				}
			} else if isVarStart(next) {
				j := i + 1
				for j < len(command) && isVarChar(command[j]) {
					j++
				}
				result.WriteString(env[command[i+1:j]])
				i = j
				continue
			}
		}

		result.WriteByte(ch)
		i++
	}
	return result.String()
}

func isVarStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isVarChar(c byte) bool {
	return isVarStart(c) || (c >= '0' && c <= '9')
}
