package mpd

import (
	"strings"
)

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isUnquoted(c byte) bool {
	return c > 0x20 && c != '"' && c != '\''
}

// Split breaks a request line into the command name and its arguments.
// Arguments are either bare words or double quoted strings in which a
// backslash escapes the following character.
func Split(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, newAck(AckUnknown, "No command given")
	}

	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	leading := i > 0

	start := i
	if i < len(line) && line[i] >= 'a' && line[i] <= 'z' {
		i++
		for i < len(line) && (line[i] >= 'a' && line[i] <= 'z' || line[i] >= '0' && line[i] <= '9' || line[i] == '_') {
			i++
		}
	}
	if i == start || (i < len(line) && !isSpace(line[i])) {
		return nil, newAck(AckUnknown, "Invalid word character")
	}
	if leading {
		return nil, newAck(AckUnknown, "Letter expected")
	}

	command := line[start:i]
	result := []string{command}
	rest := strings.TrimLeft(line[i:], " \t\n\r\v\f")

	for rest != "" {
		arg, remainder, ok := nextArg(rest)
		if !ok {
			return nil, &AckError{Code: AckArg, Command: command, Message: argErrorMessage(rest)}
		}
		result = append(result, arg)
		rest = remainder
	}
	return result, nil
}

// nextArg consumes one argument and the whitespace after it
func nextArg(s string) (arg, rest string, ok bool) {
	var end int
	if s[0] == '"' {
		var b strings.Builder
		closed := false
		i := 1
		for i < len(s) {
			c := s[i]
			if c == '\\' {
				if i+1 >= len(s) {
					break
				}
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == '"' {
				closed = true
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return "", "", false
		}
		arg, end = b.String(), i
	} else {
		i := 0
		for i < len(s) && isUnquoted(s[i]) {
			i++
		}
		if i == 0 {
			return "", "", false
		}
		arg, end = s[:i], i
	}

	if end < len(s) && !isSpace(s[end]) {
		return "", "", false
	}
	return arg, strings.TrimLeft(s[end:], " \t\n\r\v\f"), true
}

// argErrorMessage picks the message MPD gives for a malformed argument
func argErrorMessage(s string) string {
	if s[0] != '"' {
		return "Invalid unquoted character"
	}
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "Missing closing quote"
			}
			i += 2
			continue
		case '"':
			if i+1 < len(s) && !isSpace(s[i+1]) {
				return "Space expected after closing quote"
			}
			return "Invalid unquoted character"
		}
		i++
	}
	return "Missing closing quote"
}

// Quote renders s as a double quoted argument
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// Join builds a request line that Split turns back into command and args
func Join(command string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}
