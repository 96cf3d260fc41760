// Package vault stores documents as files under a root directory.
//
// Document ids are slash separated paths relative to the root. Writes go
// through a temp file and a rename so readers never see a partial document,
// and are serialized per path.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/internal/utils"
	"github.com/charmbracelet/log"
)

var (
	// ErrPathEscape is returned for ids that resolve outside the root.
	ErrPathEscape = errors.New("vault: path escapes root")
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("vault: document not found")
)

// FS is a document store backed by a directory.
type FS struct {
	root  string
	exts  []string
	locks *Locker
	log   *log.Logger
}

// New opens the vault at root. Only files with one of exts are documents;
// an empty list means ".md".
func New(root string, exts []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}
	if len(exts) == 0 {
		exts = []string{".md"}
	}
	norm := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		norm = append(norm, e)
	}
	return &FS{root: abs, exts: norm, locks: NewLocker(), log: logger.New("vault")}, nil
}

// Root returns the absolute vault directory.
func (v *FS) Root() string {
	return v.root
}

// resolve maps a document id to its file path.
func (v *FS) resolve(id string) (string, error) {
	if id == "" || strings.ContainsRune(id, 0) {
		return "", ErrPathEscape
	}
	id = strings.ReplaceAll(id, "\\", "/")
	if strings.HasPrefix(id, "/") {
		return "", ErrPathEscape
	}
	clean := path.Clean(id)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrPathEscape
	}
	full := filepath.Join(v.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(v.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return full, nil
}

// ID maps an absolute file path inside the vault back to its document id.
// It reports false for paths outside the root, hidden or temp files and
// files with other extensions.
func (v *FS) ID(abs string) (string, bool) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	id := filepath.ToSlash(rel)
	for _, part := range strings.Split(id, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if !v.isDocument(id) {
		return "", false
	}
	return id, true
}

func (v *FS) isDocument(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range v.exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Read returns the document text.
func (v *FS) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := v.resolve(id)
	if err != nil {
		return "", err
	}
	unlock := v.locks.Lock(p)
	defer unlock()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return string(data), nil
}

// Write replaces the whole text of an existing document, keeping its file
// mode. A document that no longer exists is not recreated.
func (v *FS) Write(ctx context.Context, id, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := v.resolve(id)
	if err != nil {
		return err
	}
	unlock := v.locks.Lock(p)
	defer unlock()

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	if err := utils.WriteFileAtomic(p, []byte(text), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	v.log.Debug("wrote document", "doc", id, "bytes", len(text))
	return nil
}

// List returns the ids of every document, sorted. Hidden directories and
// temp files are skipped.
func (v *FS) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == v.root {
				return err
			}
			v.log.Warn("skipping unreadable path", "path", p, "err", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if id, ok := v.ID(p); ok {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Metadata returns the structural tags of a document: its front-matter tags
// followed by inline #tags outside code.
func (v *FS) Metadata(ctx context.Context, id string) ([]string, error) {
	text, err := v.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParseTags(text), nil
}
