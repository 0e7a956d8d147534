package ncc

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"part10/ncc.html", "part2/NCC.HTML", "part1/ncc.html", "part1/other.html"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("<html/>"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	found, err := Discover(context.Background(), dir, t.TempDir(), setupTestLogger(t))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []string{
		filepath.Join(dir, "part1", "ncc.html"),
		filepath.Join(dir, "part2", "NCC.HTML"),
		filepath.Join(dir, "part10", "ncc.html"),
	}
	if len(found) != len(want) {
		t.Fatalf("Discover() = %v, want %v", found, want)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Errorf("Discover()[%d] = %s, want %s", i, found[i], want[i])
		}
	}
}

func TestDiscoverFile(t *testing.T) {
	nccPath := writeBook(t, defaultBook())
	found, err := Discover(context.Background(), nccPath, t.TempDir(), setupTestLogger(t))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 1 || found[0] != nccPath {
		t.Errorf("Discover() = %v", found)
	}

	other := filepath.Join(filepath.Dir(nccPath), "content.html")
	if _, err := Discover(context.Background(), other, t.TempDir(), setupTestLogger(t)); err == nil {
		t.Error("Discover() accepted content document")
	}
	if _, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), setupTestLogger(t)); err == nil {
		t.Error("Discover() accepted missing source")
	}
}

func TestDiscoverArchive(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "book.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range defaultBook() {
		fw, err := w.Create("book/" + name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	work := t.TempDir()
	found, err := DiscoverAll(context.Background(), []string{zipPath}, work, setupTestLogger(t))
	if err != nil {
		t.Fatalf("DiscoverAll() error = %v", err)
	}
	if len(found) != 1 || filepath.Base(found[0]) != "ncc.html" {
		t.Fatalf("DiscoverAll() = %v", found)
	}
	if rel, err := filepath.Rel(work, found[0]); err != nil || filepath.IsAbs(rel) || rel[0] == '.' {
		t.Errorf("book was not extracted into work directory: %s", found[0])
	}

	// extracted book is loadable
	units, err := NewLoader(newCountingProber(), setupTestLogger(t)).Load(context.Background(), found...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(units) != 2 {
		t.Errorf("Load() returned %d top level units, want 2", len(units))
	}
}

func TestDiscoverAllEmpty(t *testing.T) {
	if _, err := DiscoverAll(context.Background(), []string{t.TempDir()}, t.TempDir(), setupTestLogger(t)); err == nil {
		t.Error("DiscoverAll() accepted directory without books")
	}
}
