package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/bastiangx/tagfilter/pkg/blockstore"
	"github.com/bastiangx/tagfilter/pkg/config"
	"github.com/bastiangx/tagfilter/pkg/syncer"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Server handles the msgpack IPC for one host process.
type Server struct {
	engine     *syncer.Engine
	config     *config.Config
	configPath string
	dec        *msgpack.Decoder
	log        *log.Logger

	// mu guards the encoder; notices are pushed from write-cycle goroutines.
	mu  sync.Mutex
	out *bufio.Writer
	enc *msgpack.Encoder

	requestCount int
}

// NewServer creates a server speaking over stdin/stdout. configPath is where
// settings changes are saved; empty keeps them in memory.
func NewServer(engine *syncer.Engine, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(engine, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO is NewServer over arbitrary streams.
func NewServerWithIO(engine *syncer.Engine, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	out := bufio.NewWriter(w)
	s := &Server{
		engine:     engine,
		config:     cfg,
		configPath: configPath,
		dec:        msgpack.NewDecoder(bufio.NewReader(r)),
		out:        out,
		enc:        msgpack.NewEncoder(out),
		log:        logger.New("server"),
	}
	engine.SetReporter(s.Notify)
	return s
}

// Start serves requests until the input ends or ctx is done. Pending writes
// are flushed before it returns.
func (s *Server) Start(ctx context.Context) error {
	defer s.engine.FlushAll()
	s.log.Debug("Starting Server.")
	s.send(StatusResponse{Status: "ready", Tags: s.engine.Index().Snapshot().Len()})

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := s.dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("input closed", "requests", s.requestCount)
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.log.Debug("bad request", "err", err)
			s.sendError("", "invalid msgpack request", 400)
			continue
		}
		s.requestCount++
		s.handleRequest(ctx, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) {
	typ := req.Type
	if typ == "" && req.Prefix != "" {
		typ = TypeSuggest
	}
	switch typ {
	case TypeSuggest:
		s.handleSuggest(req)
	case TypeInput, TypeCompositionStart, TypeCompositionEnd:
		s.handleEvent(req, typ)
	case TypeRestore:
		s.handleRestore(ctx, req)
	case TypeNotify:
		s.handleNotify(req)
	case TypeGetSettings:
		s.send(SettingsResponse{ID: req.ID, Settings: s.settings()})
	case TypeSetSettings:
		s.handleSetSettings(req)
	case TypeHealth:
		s.send(StatusResponse{ID: req.ID, Status: "ok", Tags: s.engine.Index().Snapshot().Len()})
	case TypeClose:
		if req.Doc == "" {
			s.sendError(req.ID, "missing 'doc'", 400)
			return
		}
		s.engine.CloseDocument(req.Doc)
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown request type: %s", req.Type), 400)
	}
}

func (s *Server) handleSuggest(req Request) {
	if req.Prefix == "" {
		s.sendError(req.ID, "missing 'p' parameter", 400)
		return
	}
	if maxTok := s.config.Server.MaxToken; maxTok > 0 && utils.TextLen(req.Prefix) > maxTok {
		s.sendError(req.ID, fmt.Sprintf("prefix exceeds maximum length of %d", maxTok), 400)
		return
	}
	limit := req.Limit
	if limit < 1 || limit > s.config.Server.MaxLimit {
		limit = s.config.Server.MaxLimit
	}

	start := time.Now()
	suggestions := []Suggestion{}
	if utils.IsValidToken(req.Prefix) {
		for _, sg := range s.engine.Provider().Complete(req.Prefix, limit) {
			suggestions = append(suggestions, Suggestion{Word: sg.Tag, Rank: sg.Rank})
		}
	}
	s.send(SuggestResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   time.Since(start).Microseconds(),
	})
}

func (s *Server) handleEvent(req Request, typ string) {
	if req.Doc == "" {
		s.sendError(req.ID, "missing 'doc'", 400)
		return
	}
	ev := syncer.Event{Kind: syncer.EventInput, Input: req.Text, Caret: req.Caret}
	switch typ {
	case TypeCompositionStart:
		ev = syncer.Event{Kind: syncer.EventCompositionStart}
	case TypeCompositionEnd:
		ev = syncer.Event{Kind: syncer.EventCompositionEnd}
	}
	id := blockstore.Identity{DocumentID: req.Doc, Ordinal: req.Index}
	s.engine.HandleEvent(id, ev)
	s.send(StatusResponse{ID: req.ID, Status: "ok", Phase: s.engine.Phase(id).String()})
}

func (s *Server) handleRestore(ctx context.Context, req Request) {
	if req.Doc == "" {
		s.sendError(req.ID, "missing 'doc'", 400)
		return
	}
	st := s.engine.Restore(ctx, blockstore.Identity{DocumentID: req.Doc, Ordinal: req.Index})
	s.send(RestoreResponse{ID: req.ID, Text: st.Input, Caret: st.Caret})
}

func (s *Server) handleNotify(req Request) {
	kind, ok := syncer.ParseNotificationKind(req.Kind)
	if !ok {
		s.sendError(req.ID, fmt.Sprintf("unknown notification kind: %q", req.Kind), 400)
		return
	}
	if req.Doc == "" || (kind == syncer.Renamed && req.Old == "") {
		s.sendError(req.ID, "missing document id", 400)
		return
	}
	s.engine.HandleNotification(syncer.Notification{Kind: kind, DocumentID: req.Doc, OldID: req.Old})
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) handleSetSettings(req Request) {
	if req.Settings == nil {
		s.sendError(req.ID, "missing 'settings'", 400)
		return
	}
	u := req.Settings
	if u.DebounceMs != nil && *u.DebounceMs < 0 {
		s.sendError(req.ID, "debounce_ms must be >= 0", 400)
		return
	}
	if err := s.config.Update(s.configPath, u.EnablePrefix, u.EnableSuffix, u.EnableSubstring, u.DebounceMs); err != nil {
		// the in-memory change still applies
		s.log.Warn("failed to save settings", "path", s.configPath, "err", err)
	}
	s.engine.UpdateSettings(s.config.Match, s.config.Sync)
	s.send(SettingsResponse{ID: req.ID, Settings: s.settings()})
}

func (s *Server) settings() Settings {
	return Settings{
		EnablePrefix:    s.config.Match.EnablePrefix,
		EnableSuffix:    s.config.Match.EnableSuffix,
		EnableSubstring: s.config.Match.EnableSubstring,
		DebounceMs:      s.config.Sync.DebounceMs,
	}
}

// Notify pushes a write failure notice to the host. It is installed as the
// engine's reporter.
func (s *Server) Notify(id blockstore.Identity, err error) {
	s.send(NoticeResponse{Type: "notice", Doc: id.DocumentID, Index: id.Ordinal, Error: err.Error()})
}

func (s *Server) send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.log.Errorf("Encoding response: %v", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		s.log.Errorf("Writing response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
