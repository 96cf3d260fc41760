package vault

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var markdown = goldmark.New()

// ParseTags extracts the structural tags of a markdown document: the tags
// (or tag) list of its YAML front matter, then every inline #tag that is not
// inside code. Tags are returned without '#', in document order, duplicates
// removed.
func ParseTags(doc string) []string {
	fm, body := splitFrontMatter(doc)
	filter := utils.NewSuggestionFilter()
	var out []string
	add := func(tag string) {
		tag = strings.TrimSuffix(utils.StripTagPrefix(strings.TrimSpace(tag)), "/")
		if tag == "" || !filter.ShouldInclude(tag) {
			return
		}
		out = append(out, tag)
	}
	for _, tag := range frontMatterTags(fm) {
		add(tag)
	}
	for _, tag := range inlineTags(body) {
		add(tag)
	}
	return out
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(doc string) (string, string) {
	doc = strings.TrimPrefix(doc, "\ufeff")
	if !strings.HasPrefix(doc, "---\n") && !strings.HasPrefix(doc, "---\r\n") {
		return "", doc
	}
	rest := doc[strings.IndexByte(doc, '\n')+1:]
	offset := 0
	for {
		nl := strings.IndexByte(rest[offset:], '\n')
		var line string
		if nl < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+nl]
		}
		if trimmed := strings.TrimRight(line, "\r \t"); trimmed == "---" || trimmed == "..." {
			if nl < 0 {
				return rest[:offset], ""
			}
			return rest[:offset], rest[offset+nl+1:]
		}
		if nl < 0 {
			return "", doc
		}
		offset += nl + 1
	}
}

func frontMatterTags(fm string) []string {
	if strings.TrimSpace(fm) == "" {
		return nil
	}
	var meta map[string]any
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return nil
	}
	var tags []string
	for _, key := range []string{"tags", "tag"} {
		switch v := meta[key].(type) {
		case string:
			tags = append(tags, strings.FieldsFunc(v, func(r rune) bool {
				return r == ',' || unicode.IsSpace(r)
			})...)
		case []any:
			for _, item := range v {
				switch s := item.(type) {
				case string:
					tags = append(tags, s)
				case int, float64:
					tags = append(tags, fmt.Sprint(s))
				}
			}
		}
	}
	return tags
}

// inlineTags walks the markdown AST and scans text nodes for #tags. Code
// spans, code blocks and raw HTML are skipped.
func inlineTags(body string) []string {
	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))
	var tags []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindCodeBlock, ast.KindFencedCodeBlock,
			ast.KindHTMLBlock, ast.KindRawHTML, ast.KindAutoLink:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			tags = append(tags, scanTags(string(t.Segment.Value(src)))...)
		}
		return ast.WalkContinue, nil
	})
	return tags
}

// scanTags finds "#tag" tokens. A tag starts after whitespace, punctuation or
// the segment start and may not be all digits.
func scanTags(s string) []string {
	var tags []string
	prev := ' '
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != '#' || utils.IsTagRune(prev) || prev == '#' || prev == '&' {
			prev = r
			i += size
			continue
		}
		j := i + size
		for j < len(s) {
			r2, n := utf8.DecodeRuneInString(s[j:])
			if !utils.IsTagRune(r2) {
				break
			}
			j += n
		}
		if tag := s[i+size : j]; tag != "" && !utils.IsOnlyNumbers(tag) {
			tags = append(tags, tag)
		}
		prev = '#'
		if j > i+size {
			prev = 'x'
		}
		i = j
	}
	return tags
}
