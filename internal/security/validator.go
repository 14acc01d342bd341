// Package security gates command strings before any execution path runs
// them. It is a denylist, not a sandbox: a command that passes Check is not
// guaranteed safe against an adversarial caller. There is no chroot,
// namespace, or seccomp isolation behind it.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxCommandBytes is the ceiling on raw command length.
const MaxCommandBytes = 4096

// MaxPipeOperators bounds the number of pipe stages a command may chain.
const MaxPipeOperators = 10

// deniedLiterals are exact substrings of known-catastrophic idioms.
var deniedLiterals = []string{
	"rm -rf /",
	"rm -rf /*",
	"dd if=/dev/zero of=/dev/",
	"dd if=/dev/random of=/dev/",
	"mkfs.",
	"mkfs ",
	":(){ :|:& };:",
	"sudo ",
	"su ",
	"curl | sh",
	"curl | bash",
	"wget | sh",
	"wget | bash",
}

// deniedPatterns catch parameterized variants the literals miss.
var deniedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\s+/(\s|$|\*)`),
	regexp.MustCompile(`(?i)\bchmod\s+-R\s+777\s+/`),
	regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/(sd|hd|nvme|vd|xvd)`),
	regexp.MustCompile(`(?i)(>|>>)\s*/dev/(sd|hd|nvme|vd|xvd)`),
	regexp.MustCompile(`(?i)\b(curl|wget)\b[^|;]*\|\s*(sh|bash|zsh|dash)\b`),
	regexp.MustCompile("(?i)\\beval\\s*[\"'`$(]*\\s*(curl|wget)\\b"),
	regexp.MustCompile(`(?i)\$\(\s*(curl|wget)\b[^)]*\)\s*\|?\s*(sh|bash)?`),
	regexp.MustCompile(`:\s*\(\s*\)\s*\{.*\|.*&.*\}`),
}

// Check validates a command string against the denylist. It is pure and
// side-effect free; a false return carries a human-readable reason.
func Check(command string) (bool, string) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return false, "empty command"
	}
	if len(command) > MaxCommandBytes {
		return false, fmt.Sprintf("command exceeds %d bytes", MaxCommandBytes)
	}
	if n := strings.Count(command, "|"); n > MaxPipeOperators {
		return false, fmt.Sprintf("command chains %d pipes (limit %d)", n, MaxPipeOperators)
	}
	for _, literal := range deniedLiterals {
		if strings.Contains(command, literal) {
			return false, fmt.Sprintf("blocked dangerous command: contains %q", literal)
		}
	}
	for _, re := range deniedPatterns {
		if re.MatchString(command) {
			return false, fmt.Sprintf("blocked dangerous command: matches pattern %q", re.String())
		}
	}
	return true, ""
}
