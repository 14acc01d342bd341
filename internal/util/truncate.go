package util

import "strings"

// TruncationMarker is appended to any stream cut at its byte ceiling.
const TruncationMarker = "\n[OUTPUT TRUNCATED]"

// CapBytes trims a string to maxBytes and appends the truncation marker
// when trimming occurred. The marker is not counted against the cap.
func CapBytes(input string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(input) <= maxBytes {
		return input, false
	}
	return input[:maxBytes] + TruncationMarker, true
}

// EchoCommand shortens a command string for display in results and task
// summaries. The echoed form is never meant to be re-executed.
func EchoCommand(command string, maxChars int) string {
	if maxChars <= 0 || len(command) <= maxChars {
		return command
	}
	return command[:maxChars] + "..."
}

// SanitizeOutput replaces invalid UTF-8 sequences so captured process
// output can always be carried in a JSON response.
func SanitizeOutput(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}
