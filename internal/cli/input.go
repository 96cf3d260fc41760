// Package cli handles cmd line input and tag suggestions for DBG and testing
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/bastiangx/tagfilter/pkg/filter"
	"github.com/bastiangx/tagfilter/pkg/suggest"
	"github.com/charmbracelet/log"
)

// FilterCommand previews the filter a query expands to instead of listing
// suggestions.
const FilterCommand = ":filter "

// Completer is what the CLI needs from the suggestion provider.
type Completer interface {
	Complete(token string, limit int) []suggest.Suggestion
	Expand(token string, limit int) []string
}

// InputHandler reads tokens line by line and prints ranked tag suggestions.
type InputHandler struct {
	completer    Completer
	maxLength    int
	suggestLimit int
	maxTags      int
	noFilter     bool
	requestCount int
	in           io.Reader
	log          *log.Logger
}

// NewInputHandler creates a handler reading from in and printing to out.
func NewInputHandler(completer Completer, in io.Reader, out io.Writer, maxLength, limit, maxTags int, noFilter bool) *InputHandler {
	l := logger.NewTo(out, "")
	l.SetReportTimestamp(false)
	return &InputHandler{
		completer:    completer,
		maxLength:    maxLength,
		suggestLimit: limit,
		maxTags:      maxTags,
		noFilter:     noFilter,
		in:           in,
		log:          l,
	}
}

// Start runs the loop until the input ends.
func (h *InputHandler) Start() error {
	h.log.Print("tagfilter CLI")
	h.log.Print("type a tag and press Enter to see suggestions, or ':filter <query>' to preview a filter (Ctrl+C to exit):")
	reader := bufio.NewReader(h.in)
	for {
		h.log.Print("> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			h.handleInput(line)
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// Requests returns how many lines were handled.
func (h *InputHandler) Requests() int {
	return h.requestCount
}

func (h *InputHandler) handleInput(line string) {
	h.requestCount++
	if query, ok := strings.CutPrefix(line, FilterCommand); ok {
		h.printFilter(query)
		return
	}

	if h.maxLength > 0 && utils.TextLen(line) > h.maxLength {
		h.log.Errorf("Token too long: %s", line)
		return
	}
	if !h.noFilter && !utils.IsValidToken(line) {
		h.log.Infof("No results found for token: '%s'", line)
		return
	}

	start := time.Now()
	suggestions := h.completer.Complete(line, h.suggestLimit)
	h.log.Debugf("Took [ %v ] for token '%s'", time.Since(start), line)

	if len(suggestions) == 0 {
		h.log.Warnf("No suggestions found for token: '%s'", line)
		return
	}
	h.log.Printf("Found %d suggestions for '%s':", len(suggestions), line)
	for _, s := range suggestions {
		clTag := fmt.Sprintf("\033[38;5;75m%s\033[0m", s.Tag)
		h.log.Printf("%2d. %-40s (%s)", s.Rank, clTag, s.Tier)
	}
}

func (h *InputHandler) printFilter(query string) {
	terms := filter.Expand(query, h.completer, h.maxTags)
	for _, line := range strings.Split(strings.TrimRight(filter.Render(terms), "\n"), "\n") {
		h.log.Print(line)
	}
}
