// Package region finds and patches the managed filter section of a note.
//
// A managed region lives inside a ```base fence and is delimited by a begin
// and end marker comment:
//
//	```base
//	# BEGIN FILTERS (managed by tagfilter)
//	...body...
//	# END FILTERS
//	# Manual edits below this point are preserved.
//	```
//
// Only the body between the markers is ever rewritten. One region per
// document is supported; the first fence holding a complete marker pair wins
// and any later ones are left alone.
package region

import "strings"

// Protocol constants shared with documents written by earlier versions.
const (
	FenceOpen        = "```base"
	FenceClose       = "```"
	BeginPrefix      = "# BEGIN FILTERS"
	BeginMarker      = BeginPrefix + " (managed by tagfilter)"
	EndMarker        = "# END FILTERS"
	PreservedComment = "# Manual edits below this point are preserved."
	EmptyFilters     = "filters:"
)

// Template is appended to documents that have no managed region yet.
const Template = FenceOpen + "\n" +
	BeginMarker + "\n" +
	EmptyFilters + "\n" +
	EndMarker + "\n" +
	PreservedComment + "\n" +
	FenceClose + "\n"

// Region holds byte offsets into a document.
// FenceStart <= BodyStart <= BodyEnd <= FenceEnd always holds.
type Region struct {
	FenceStart int
	FenceEnd   int
	BodyStart  int
	BodyEnd    int
}

// Body returns the region's body within text, or "" if the offsets do not fit.
func (r Region) Body(text string) string {
	if r.BodyStart < 0 || r.BodyEnd > len(text) || r.BodyStart > r.BodyEnd {
		return ""
	}
	return text[r.BodyStart:r.BodyEnd]
}

type span struct{ start, end int }

// splitLines returns line spans; end excludes the newline.
func splitLines(text string) []span {
	var lines []span
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, span{start, i})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, span{start, len(text)})
	}
	return lines
}

func lineText(text string, l span) string {
	return strings.TrimSpace(text[l.start:l.end])
}

// Locate finds the managed region in text.
func Locate(text string) (Region, bool) {
	lines := splitLines(text)
	for i := 0; i < len(lines); i++ {
		if lineText(text, lines[i]) != FenceOpen {
			continue
		}
		closeIdx := -1
		for j := i + 1; j < len(lines); j++ {
			if lineText(text, lines[j]) == FenceClose {
				closeIdx = j
				break
			}
		}
		if closeIdx < 0 {
			return Region{}, false
		}

		begin, end := -1, -1
		for k := i + 1; k < closeIdx; k++ {
			s := lineText(text, lines[k])
			if begin < 0 && strings.HasPrefix(s, BeginPrefix) {
				begin = k
				continue
			}
			if begin >= 0 && end < 0 && strings.HasPrefix(s, EndMarker) {
				end = k
			}
		}
		if begin >= 0 && end > begin {
			return Region{
				FenceStart: lines[i].start,
				FenceEnd:   lines[closeIdx].end,
				BodyStart:  lines[begin].end + 1,
				BodyEnd:    lines[end].start,
			}, true
		}
		i = closeIdx
	}
	return Region{}, false
}

// EnsureRegion returns text unchanged with its region when one exists.
// Otherwise it appends Template and returns the extended text with the new
// region. Callers must pass freshly read text so concurrent edits survive.
func EnsureRegion(text string) (string, Region) {
	if r, ok := Locate(text); ok {
		return text, r
	}

	var b strings.Builder
	b.Grow(len(text) + len(Template) + 1)
	b.WriteString(text)
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(Template)
	out := b.String()

	// The template carries both markers inside a closed fence, so it is always
	// found, possibly as the tail of an unclosed fence before it.
	r, _ := Locate(out)
	return out, r
}

// ReplaceRegionBody splices body into text. The region is re-located against
// text first so edits made since stale was computed are respected. When the
// markers have vanished the stale offsets are used anyway, clamped to text,
// and relocated is false.
func ReplaceRegionBody(text string, stale Region, body string) (out string, relocated bool) {
	r, ok := Locate(text)
	if !ok {
		r = clamp(stale, len(text))
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return text[:r.BodyStart] + body + text[r.BodyEnd:], ok
}

func clamp(r Region, n int) Region {
	bound := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > n {
			return n
		}
		return v
	}
	r.BodyStart = bound(r.BodyStart)
	r.BodyEnd = bound(r.BodyEnd)
	if r.BodyEnd < r.BodyStart {
		r.BodyEnd = r.BodyStart
	}
	return r
}
