package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newVault(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	v, err := New(root, []string{"md", ".Markdown"})
	if err != nil {
		t.Fatal(err)
	}
	return v, v.Root()
}

func TestResolveRejectsEscapes(t *testing.T) {
	v, _ := newVault(t)
	for _, id := range []string{"", "..", "../x.md", "a/../../x.md", "/etc/passwd", "a\x00.md", `..\x.md`} {
		if _, err := v.resolve(id); !errors.Is(err, ErrPathEscape) {
			t.Errorf("resolve(%q) err = %v, want ErrPathEscape", id, err)
		}
	}
	if _, err := v.resolve("notes/./a.md"); err != nil {
		t.Errorf("resolve of clean path: %v", err)
	}
}

func TestReadWrite(t *testing.T) {
	v, root := newVault(t)
	ctx := context.Background()

	if _, err := v.Read(ctx, "missing.md"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing err = %v", err)
	}
	writeFile(t, root, "notes/a.md", "hello")
	if err := os.Chmod(filepath.Join(root, "notes", "a.md"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := v.Read(ctx, "notes/a.md")
	if err != nil || got != "hello" {
		t.Fatalf("Read = %q, %v", got, err)
	}
	if err := v.Write(ctx, "notes/a.md", "changed"); err != nil {
		t.Fatal(err)
	}
	if got, _ := v.Read(ctx, "notes/a.md"); got != "changed" {
		t.Errorf("after write = %q", got)
	}
	info, err := os.Stat(filepath.Join(root, "notes", "a.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if err := v.Write(ctx, "../escape.md", "x"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("Write escape err = %v", err)
	}
}

func TestWriteDoesNotRecreateDeleted(t *testing.T) {
	v, root := newVault(t)
	ctx := context.Background()
	writeFile(t, root, "a.md", "hello")
	if err := os.Remove(filepath.Join(root, "a.md")); err != nil {
		t.Fatal(err)
	}

	if err := v.Write(ctx, "a.md", "late write"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Write after delete err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a.md")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("deleted document was recreated: %v", err)
	}
}

func TestReadHonorsContext(t *testing.T) {
	v, root := newVault(t)
	writeFile(t, root, "a.md", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := v.Read(ctx, "a.md"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestList(t *testing.T) {
	v, root := newVault(t)
	writeFile(t, root, "b.md", "")
	writeFile(t, root, "a/c.MD", "")
	writeFile(t, root, "a/d.markdown", "")
	writeFile(t, root, "image.png", "")
	writeFile(t, root, ".obsidian/workspace.md", "")
	writeFile(t, root, "a/.tmp.c.MD.123", "")
	writeFile(t, root, ".hidden.md", "")

	got, err := v.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/c.MD", "a/d.markdown", "b.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestMetadata(t *testing.T) {
	v, root := newVault(t)
	writeFile(t, root, "a.md", "---\ntags: [work, \"#urgent\"]\n---\nNotes about #project/alpha.\n")
	got, err := v.Metadata(context.Background(), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"work", "urgent", "project/alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Metadata = %v, want %v", got, want)
	}
}

func TestNewRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(f, nil); err == nil {
		t.Error("expected error for non-directory root")
	}
}
