// Package archive unpacks zipped talking books on top of "archive/zip".
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk. If an error is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Walk walks all files in the archive with names starting with prefix,
// calling walkFn for each item. Archive with entries which could escape
// extraction directory (absolute or containing "..") is rejected.
func Walk(archive, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(archive, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsZip reports if file content looks like zip archive.
func IsZip(file string) (bool, error) {
	kind, err := filetype.MatchFile(file)
	if err != nil {
		return false, err
	}
	return kind == matchers.TypeZip, nil
}

// Extract unpacks all files of the archive into dest directory, keeping
// archive structure. Returns slash separated names of extracted files.
func Extract(ctx context.Context, archive, dest string) ([]string, error) {
	var names []string
	err := Walk(archive, "", func(_ string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(path.Clean(f.Name)))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("unable to create directory for %q: %w", f.Name, err)
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("unable to extract %q: %w", f.Name, err)
		}
		names = append(names, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func extractFile(f *zip.File, target string) (err error) {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(w, r)
	return err
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || (len(name) > 1 && name[1] == ':') {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}
