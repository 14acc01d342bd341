package execute

import (
	"bytes"
	"errors"
)

// Tokenize splits a command string into argv form without invoking a shell.
// Single quotes, double quotes, and backslash escapes are honored; no
// variable expansion, globbing, or pipe interpretation happens here.
func Tokenize(input string) ([]string, error) {
	var args []string
	var buf bytes.Buffer
	inSingle := false
	inDouble := false
	escape := false

	for _, r := range input {
		if escape {
			buf.WriteRune(r)
			escape = false
			continue
		}
		if r == '\\' && !inSingle {
			escape = true
			continue
		}
		if r == '\'' && !inDouble {
			inSingle = !inSingle
			continue
		}
		if r == '"' && !inSingle {
			inDouble = !inDouble
			continue
		}
		if (r == ' ' || r == '\t' || r == '\n') && !inSingle && !inDouble {
			if buf.Len() > 0 {
				args = append(args, buf.String())
				buf.Reset()
			}
			continue
		}
		buf.WriteRune(r)
	}
	if escape || inSingle || inDouble {
		return nil, errors.New("unterminated quote or escape in command")
	}
	if buf.Len() > 0 {
		args = append(args, buf.String())
	}
	if len(args) == 0 {
		return nil, errors.New("command is empty")
	}
	return args, nil
}
