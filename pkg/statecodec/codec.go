/*
Package statecodec stores a search box's input text and caret inside the
managed region as two comment lines:

	# tagfilter-input: %23proj%20urgent
	# tagfilter-caret: 5

The input is percent-escaped so that newlines, '#' and '%' never break the
surrounding comment syntax. Decoding is best-effort: malformed escapes come
back verbatim instead of failing a restore.
*/
package statecodec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bastiangx/tagfilter/internal/utils"
)

const (
	// InputLabel prefixes the line holding the encoded input text.
	InputLabel = "# tagfilter-input:"
	// CaretLabel prefixes the line holding the caret offset.
	CaretLabel = "# tagfilter-caret:"
)

// State is a decoded (input, caret) pair.
type State struct {
	Input string
	Caret int
}

// Encode escapes text into a single-line token.
func Encode(text string) string {
	return url.PathEscape(text)
}

// Decode reverses Encode. Malformed input is returned unchanged.
func Decode(token string) string {
	text, err := url.PathUnescape(token)
	if err != nil {
		return token
	}
	return text
}

// SerializeState renders the two state lines, newline terminated.
func SerializeState(input string, caret int) string {
	caret = utils.ClampCaret(input, caret)
	var b strings.Builder
	b.WriteString(InputLabel)
	b.WriteByte(' ')
	b.WriteString(Encode(input))
	b.WriteByte('\n')
	b.WriteString(CaretLabel)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(caret))
	b.WriteByte('\n')
	return b.String()
}

// ParseState looks for the state lines in body. It reports false only when
// neither line is present. A missing or non-numeric caret defaults to the end
// of the input.
func ParseState(body string) (State, bool) {
	var (
		input             string
		caretRaw          string
		haveInput, haveCr bool
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case !haveInput && strings.HasPrefix(line, InputLabel):
			input = Decode(strings.TrimSpace(strings.TrimPrefix(line, InputLabel)))
			haveInput = true
		case !haveCr && strings.HasPrefix(line, CaretLabel):
			caretRaw = strings.TrimSpace(strings.TrimPrefix(line, CaretLabel))
			haveCr = true
		}
	}
	if !haveInput && !haveCr {
		return State{}, false
	}

	caret := utils.TextLen(input)
	if haveCr {
		if n, err := strconv.Atoi(caretRaw); err == nil {
			caret = utils.ClampCaret(input, n)
		}
	}
	return State{Input: input, Caret: caret}, true
}
