package shell

import (
	"strings"
)

// exitCodePolicy maps primary commands to non-zero exit codes that signal a
// condition rather than a failure.
var exitCodePolicy = map[string]map[int]bool{
	// Searchers: 1 = no matches
	"grep":     {1: true},
	"egrep":    {1: true},
	"fgrep":    {1: true},
	"rg":       {1: true},
	"ag":       {1: true},
	"ack":      {1: true},
	"git grep": {1: true},

	// File comparison: 1 = files differ
	"diff":  {1: true},
	"sdiff": {1: true},
	"cmp":   {1: true},
	"diff3": {1: true},

	// Condition evaluation: 1 = condition false
	"test":  {1: true},
	"[":     {1: true},
	"false": {1: true},
	"expr":  {1: true},

	// Process queries: 1 = nothing matched
	"pgrep": {1: true},
	"pkill": {1: true},
	"pidof": {1: true},

	// Git probes
	"git diff":         {1: true},
	"git check-ignore": {1: true},
	"git ls-files":     {1: true},
	"git cat-file":     {1: true},

	// Timeouts (GNU coreutils): 124 = command timed out
	"timeout": {124: true},

	"which": {1: true},

	// Mount checks: 1 = not a mountpoint, 32 = environment error
	"mountpoint": {1: true, 32: true},
	"umount":     {32: true},

	// Checksums in verification mode
	"md5sum":    {1: true},
	"sha1sum":   {1: true},
	"sha256sum": {1: true},

	// Infrastructure tools
	"terraform": {2: true},
	"rsync":     {24: true},

	// Service status probes
	"systemctl":            {1: true, 3: true, 4: true},
	"service":              {1: true, 3: true, 4: true},
	"supervisorctl status": {1: true},

	// Networking probes
	"ping":  {1: true},
	"fuser": {1: true},
	"lsof":  {1: true},
	"nc -z": {1: true},

	"crontab": {1: true},

	"iptables":  {1: true},
	"ip6tables": {1: true},

	// Lookups and name resolution
	"locate":        {1: true},
	"getent":        {1: true},
	"host":          {1: true},
	"nslookup":      {1: true},
	"ssh-keygen -F": {1: true},
	"jq -e":         {1: true},

	// Package presence probes
	"rpm -q":        {1: true},
	"dpkg -s":       {1: true},
	"dpkg-query -W": {1: true},
	"apk info":      {1: true},
	"apk info -e":   {1: true},
	"pacman -Qi":    {1: true},
	"pip show":      {1: true},
	"pip3 show":     {1: true},
	"helm status":   {1: true},
}

// lastPipelineSegment returns the final segment of a pipeline.
func lastPipelineSegment(command string) string {
	parts := strings.Split(command, "|")
	return strings.TrimSpace(parts[len(parts)-1])
}

// lastSimpleCommand trims shell separators so only the command that
// determines the compound statement's exit code remains.
func lastSimpleCommand(command string) string {
	segment := strings.TrimSpace(command)
	if i := strings.LastIndex(segment, ";"); i >= 0 {
		segment = strings.TrimSpace(segment[i+1:])
	}
	for _, sep := range []string{"&&", "||"} {
		if i := strings.LastIndex(segment, sep); i >= 0 {
			segment = strings.TrimSpace(segment[i+len(sep):])
		}
	}
	return lastPipelineSegment(segment)
}

// hasToken reports whether tok appears among the arguments.
func hasToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

// IdentifyPrimaryCommand returns the canonical command name used for exit
// code policy lookup, e.g. "grep", "git diff", "jq -e".
func IdentifyPrimaryCommand(command string) string {
	tokens := strings.Fields(lastSimpleCommand(command))
	if len(tokens) == 0 {
		return ""
	}
	head := tokens[0]
	rest := tokens[1:]

	switch head {
	case "git":
		if len(rest) > 0 {
			return "git " + rest[0]
		}
	case "ssh-keygen":
		if hasToken(rest, "-F") {
			return "ssh-keygen -F"
		}
	case "jq":
		if hasToken(rest, "-e") {
			return "jq -e"
		}
	case "nc":
		if hasToken(rest, "-z") {
			return "nc -z"
		}
	case "rpm":
		if hasToken(rest, "-q") {
			return "rpm -q"
		}
	case "dpkg":
		if hasToken(rest, "-s") {
			return "dpkg -s"
		}
	case "dpkg-query":
		if hasToken(rest, "-W") {
			return "dpkg-query -W"
		}
	case "apk":
		if len(rest) > 0 && rest[0] == "info" {
			if hasToken(rest[1:], "-e") {
				return "apk info -e"
			}
			return "apk info"
		}
	case "pacman":
		if hasToken(rest, "-Qi") {
			return "pacman -Qi"
		}
	case "pip", "pip3":
		if len(rest) > 0 && rest[0] == "show" {
			return head + " show"
		}
	case "helm":
		if len(rest) > 0 && rest[0] == "status" {
			return "helm status"
		}
	case "supervisorctl":
		if len(rest) > 0 && rest[0] == "status" {
			return "supervisorctl status"
		}
	}
	return head
}

// AllowedNonzeroExitCodes returns the accepted non-zero exit codes for a
// primary command.
func AllowedNonzeroExitCodes(primary string) map[int]bool {
	return exitCodePolicy[primary]
}

// TreatAsSuccess reports whether the exit code counts as a successful
// outcome for this command. Zero always succeeds; non-zero codes succeed
// only when the primary command's policy allows them.
func TreatAsSuccess(command string, exitCode int) bool {
	if exitCode == 0 {
		return true
	}
	return AllowedNonzeroExitCodes(IdentifyPrimaryCommand(command))[exitCode]
}
