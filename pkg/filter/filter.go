// Package filter turns a typed query into the filter expression stored in a
// managed region.
//
// Every whitespace separated token becomes one term. A term matches any of
// the tags its token expands to; all terms must match:
//
//	filters:
//	  and:
//	    - or:
//	        - file.hasTag("project")
//	        - file.hasTag("projecta")
//	    - or:
//	        - file.hasTag("urgent")
package filter

import (
	"strconv"
	"strings"

	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/bastiangx/tagfilter/pkg/region"
	"github.com/bastiangx/tagfilter/pkg/statecodec"
)

// DefaultMaxTagsPerTerm bounds how many tags one token may expand into.
const DefaultMaxTagsPerTerm = 64

// Expander maps an in-progress token to the tags it stands for.
// *suggest.Provider satisfies it.
type Expander interface {
	Expand(token string, limit int) []string
}

// Term is one token of the query and the tags it expanded to.
type Term struct {
	Token string
	Tags  []string
}

// Expand splits input on whitespace and expands each token through ex. A
// token without matches keeps its own text as the only tag so the filter
// still says what the user typed.
func Expand(input string, ex Expander, maxTags int) []Term {
	if maxTags <= 0 {
		maxTags = DefaultMaxTagsPerTerm
	}
	var terms []Term
	for _, tok := range strings.Fields(input) {
		tag := utils.StripTagPrefix(tok)
		if tag == "" {
			continue
		}
		tags := ex.Expand(tag, maxTags)
		if len(tags) == 0 {
			tags = []string{tag}
		}
		terms = append(terms, Term{Token: tok, Tags: tags})
	}
	return terms
}

// Render formats terms as a filters declaration. No terms gives a bare
// declaration that matches everything.
func Render(terms []Term) string {
	var b strings.Builder
	b.WriteString(region.EmptyFilters)
	b.WriteByte('\n')
	switch len(terms) {
	case 0:
	case 1:
		writeOr(&b, "  or:\n", "    ", terms[0].Tags)
	default:
		b.WriteString("  and:\n")
		for _, t := range terms {
			writeOr(&b, "    - or:\n", "        ", t.Tags)
		}
	}
	return b.String()
}

func writeOr(b *strings.Builder, head, indent string, tags []string) {
	b.WriteString(head)
	for _, tag := range tags {
		b.WriteString(indent)
		b.WriteString("- file.hasTag(")
		b.WriteString(strconv.Quote(tag))
		b.WriteString(")\n")
	}
}

// Body is the full managed region body: the state lines followed by the
// rendered filters.
func Body(input string, caret int, terms []Term) string {
	return statecodec.SerializeState(input, caret) + Render(terms)
}
