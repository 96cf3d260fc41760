package region

import (
	"fmt"
	"strings"
	"testing"
)

const sample = "# Note\n\nintro\n\n```base\n# BEGIN FILTERS (managed by tagfilter)\nfilters:\n# END FILTERS\n# Manual edits below this point are preserved.\nviews:\n  - type: table\n```\n\ntrailer\n"

func TestLocateSample(t *testing.T) {
	r, ok := Locate(sample)
	if !ok {
		t.Fatal("Locate returned absent")
	}
	if got := r.Body(sample); got != "filters:\n" {
		t.Errorf("body = %q, want %q", got, "filters:\n")
	}
	if !strings.HasPrefix(sample[r.FenceStart:], FenceOpen) {
		t.Errorf("FenceStart does not point at the fence: %q", sample[r.FenceStart:])
	}
	if sample[r.FenceEnd-3:r.FenceEnd] != FenceClose {
		t.Errorf("FenceEnd does not close the fence")
	}
	if !(r.FenceStart <= r.BodyStart && r.BodyStart <= r.BodyEnd && r.BodyEnd <= r.FenceEnd) {
		t.Errorf("offsets out of order: %+v", r)
	}
}

func TestLocateAbsent(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no fence", "# BEGIN FILTERS\nfilters:\n# END FILTERS\n"},
		{"other fence kind", "```yaml\n# BEGIN FILTERS\n# END FILTERS\n```\n"},
		{"unclosed", "```base\n# BEGIN FILTERS\n# END FILTERS\n"},
		{"missing end", "```base\n# BEGIN FILTERS\nfilters:\n```\n"},
		{"missing begin", "```base\nfilters:\n# END FILTERS\n```\n"},
		{"end before begin", "```base\n# END FILTERS\n# BEGIN FILTERS\n```\n"},
		{"markers outside fence", "# BEGIN FILTERS\n```base\nfilters:\n```\n# END FILTERS\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r, ok := Locate(tt.text); ok {
				t.Errorf("Locate found %+v, want absent", r)
			}
		})
	}
}

func TestLocateFenceAtEndOfText(t *testing.T) {
	doc := "```base\n# BEGIN FILTERS ...\nfilters:\n# END FILTERS\n```"
	r, ok := Locate(doc)
	if !ok {
		t.Fatal("Locate returned absent")
	}
	if r.Body(doc) != "filters:\n" {
		t.Errorf("body = %q", r.Body(doc))
	}
	if r.FenceEnd != len(doc) {
		t.Errorf("FenceEnd = %d, want %d", r.FenceEnd, len(doc))
	}
}

func TestLocateFirstRegionWins(t *testing.T) {
	doc := "```base\n# BEGIN FILTERS\nfirst\n# END FILTERS\n```\n```base\n# BEGIN FILTERS\nsecond\n# END FILTERS\n```\n"
	r, ok := Locate(doc)
	if !ok || r.Body(doc) != "first\n" {
		t.Fatalf("Locate = %+v %v, want first region", r, ok)
	}
	out, _ := ReplaceRegionBody(doc, r, "patched\n")
	if !strings.Contains(out, "second\n") {
		t.Errorf("second region was touched: %q", out)
	}
}

func TestEnsureRegionIsLocateInverse(t *testing.T) {
	docs := []string{
		"",
		"plain text",
		"plain text\n",
		"---\ntags: [a]\n---\n# Title\n",
		"```base\nviews: []\n```\n",
		"```base\n# BEGIN FILTERS\nunterminated",
		"```base\n# END FILTERS\n",
		"```base\n# END FILTERS\n# BEGIN FILTERS\n```\n",
		"```go\nfunc main() {}\n```\n",
		sample,
	}
	for _, d := range docs {
		out, r := EnsureRegion(d)
		got, ok := Locate(out)
		if !ok {
			t.Errorf("Locate(EnsureRegion(%q)) absent", d)
			continue
		}
		if got != r {
			t.Errorf("Locate(EnsureRegion(%q)) = %+v, want %+v", d, got, r)
		}
		if !strings.HasPrefix(out, d) {
			t.Errorf("EnsureRegion modified existing content of %q", d)
		}
	}
}

func TestEnsureRegionAppendsTemplate(t *testing.T) {
	out, r := EnsureRegion("hello")
	want := "hello\n" + Template
	if out != want {
		t.Fatalf("EnsureRegion = %q, want %q", out, want)
	}
	if r.Body(out) != EmptyFilters+"\n" {
		t.Errorf("body = %q", r.Body(out))
	}

	existing := sample
	out, _ = EnsureRegion(existing)
	if out != existing {
		t.Errorf("EnsureRegion rewrote a document that already had a region")
	}
}

func TestReplaceRegionBodyPreservesOutside(t *testing.T) {
	r, _ := Locate(sample)
	out, relocated := ReplaceRegionBody(sample, r, "filters:\n  or:\n    - file.hasTag(\"x\")\n")
	if !relocated {
		t.Error("expected relocation to succeed")
	}
	nr, _ := Locate(out)
	if out[:nr.BodyStart] != sample[:r.BodyStart] {
		t.Error("text before the body changed")
	}
	if out[nr.BodyEnd:] != sample[r.BodyEnd:] {
		t.Error("text after the body changed")
	}
}

func TestReplaceRegionBodyRelocatesAgainstFreshText(t *testing.T) {
	r, _ := Locate(sample)
	// Someone prepends content after r was computed.
	fresh := "inserted line\nanother\n" + sample
	out, relocated := ReplaceRegionBody(fresh, r, "new body\n")
	if !relocated {
		t.Fatal("expected relocation")
	}
	if !strings.HasPrefix(out, "inserted line\nanother\n# Note") {
		t.Errorf("prepended content damaged: %q", out)
	}
	nr, _ := Locate(out)
	if nr.Body(out) != "new body\n" {
		t.Errorf("body = %q", nr.Body(out))
	}
}

func TestReplaceRegionBodyFallsBackToStaleOffsets(t *testing.T) {
	r, _ := Locate(sample)
	broken := strings.Replace(sample, EndMarker, "# removed", 1)
	out, relocated := ReplaceRegionBody(broken, r, "X\n")
	if relocated {
		t.Fatal("relocation should fail when markers vanish")
	}
	if out != broken[:r.BodyStart]+"X\n"+broken[r.BodyEnd:] {
		t.Errorf("stale splice mismatch: %q", out)
	}

	// Stale offsets beyond the text are clamped rather than panicking.
	out, _ = ReplaceRegionBody("short", Region{BodyStart: 50, BodyEnd: 80}, "Y")
	if out != "shortY\n" {
		t.Errorf("clamped splice = %q", out)
	}
}

func TestEnsureRegionStrayEndMarker(t *testing.T) {
	// An end marker ahead of any begin must not close the region, or every
	// write cycle appends another template.
	text := "```base\n# END FILTERS\n"
	for i := 0; i < 3; i++ {
		out, r := EnsureRegion(text)
		if !strings.HasPrefix(out, text) {
			t.Fatalf("cycle %d: EnsureRegion modified existing content", i)
		}
		body := fmt.Sprintf("filters:\n  cycle: %d\n", i)
		text, _ = ReplaceRegionBody(out, r, body)
		got, ok := Locate(text)
		if !ok {
			t.Fatalf("cycle %d: region not found in %q", i, text)
		}
		if got.Body(text) != body {
			t.Errorf("cycle %d: body = %q, want %q", i, got.Body(text), body)
		}
	}
	if n := strings.Count(text, BeginMarker); n != 1 {
		t.Errorf("document holds %d managed regions, want 1:\n%s", n, text)
	}
}
