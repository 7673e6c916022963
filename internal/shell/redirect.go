package shell

import (
	"path/filepath"
	"regexp"
	"strings"
)

// tarSelfArchiveRe matches tar invocations that create an archive inside the
// directory being archived, e.g. "tar -czf backup.tar.gz .".
var tarSelfArchiveRe = regexp.MustCompile(`(tar\s+[a-zA-Z0-9\-]*[czf])\s+([^\s]+)\s+\.`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// DetectAndFixTarCommand rewrites tar commands that would archive their own
// output file. tar reports "file changed as we read it" when the archive
// lands in the directory it is reading, so the archive is created in the
// parent directory first and moved into place afterwards.
func DetectAndFixTarCommand(command, executionCwd string) string {
	match := tarSelfArchiveRe.FindStringSubmatch(strings.TrimSpace(command))
	if match == nil {
		return command
	}

	tarFlags := whitespaceRe.ReplaceAllString(match[1], " ")
	outputFile := match[2]

	local := strings.HasPrefix(outputFile, "./") ||
		(!strings.HasPrefix(outputFile, "/") && !strings.Contains(outputFile, "/"))
	if !local {
		return command
	}

	filename := filepath.Base(outputFile)
	tempArchive := filepath.Join(filepath.Dir(executionCwd), filename)
	return tarFlags + " " + tempArchive + " . && mv " + tempArchive + " " + outputFile
}

// ExtractLastRedirectionTarget returns the filename of the last unquoted
// output redirection in the command, or "" when there is none. Content
// inside quotes is ignored, and for bash/sh -c invocations the quoted inner
// command is scanned instead. Heredocs are skipped entirely since their
// bodies may contain arbitrary '>' characters.
func ExtractLastRedirectionTarget(command string) string {
	scan := command

	// Descend into bash -c "..." / sh -c '...' so redirections inside the
	// quoted command body are seen.
	lowered := strings.ToLower(command)
	if (strings.Contains(lowered, "bash") || strings.Contains(lowered, "sh")) &&
		strings.Contains(lowered, " -c ") {
		cIndex := strings.Index(lowered, " -c ")
		j := cIndex + 4
		for j < len(command) && (command[j] == ' ' || command[j] == '\t') {
			j++
		}
		if j < len(command) && (command[j] == '"' || command[j] == '\'') {
			quote := command[j]
			j++
			start := j
			for j < len(command) && command[j] != quote {
				if command[j] == '\\' && j+1 < len(command) && command[j+1] == quote {
					j += 2
					continue
				}
				j++
			}
			scan = command[start:j]
		}
	}

	if strings.Contains(scan, "<<") {
		return ""
	}

	var lastTarget string
	inSingle := false
	inDouble := false
	i := 0
	for i < len(scan) {
		ch := scan[i]
		if ch == '\'' && !inDouble {
			inSingle = !inSingle
			i++
			continue
		}
		if ch == '"' && !inSingle {
			inDouble = !inDouble
			i++
			continue
		}
		if ch == '>' && !inSingle && !inDouble {
			j := i + 1
			for j < len(scan) && (scan[j] == '>' || scan[j] == ' ' || scan[j] == '\t') {
				j++
			}
			var token string
			if j < len(scan) {
				if scan[j] == '"' || scan[j] == '\'' {
					quote := scan[j]
					j++
					start := j
					for j < len(scan) && scan[j] != quote {
						j++
					}
					token = scan[start:j]
				} else {
					start := j
					for j < len(scan) && !isShellMetachar(scan[j]) {
						j++
					}
					token = scan[start:j]
				}
			}
			if token != "" {
				lastTarget = token
			}
			i = j
			continue
		}
		i++
	}
	return lastTarget
}

func isShellMetachar(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '&', '|', ';', '<', '>':
		return true
	}
	return false
}
