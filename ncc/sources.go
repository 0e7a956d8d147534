package ncc

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"dtbm/archive"
	"dtbm/dtb"
)

// Discover turns command line source into list of navigation documents.
// Source could be navigation document itself, directory or zip archive
// containing one or several books. Books found in directories are returned in
// natural order of their paths ("part2" before "part10"). Archives are
// extracted into workDir.
func Discover(ctx context.Context, src, workDir string, log *zap.Logger) ([]string, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found: %w", err)
	}
	if fi.IsDir() {
		return findNavigation(ctx, src)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("unexpected path mode for %s", src)
	}

	zipped, err := archive.IsZip(src)
	if err != nil {
		return nil, fmt.Errorf("unable to check archive type: %w", err)
	}
	if !zipped {
		if !isNavigationDocument(src) {
			return nil, fmt.Errorf("input was not recognized as DAISY 2.02 book (%s)", src)
		}
		return []string{src}, nil
	}

	dest, err := os.MkdirTemp(workDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+"-")
	if err != nil {
		return nil, fmt.Errorf("unable to create extraction directory: %w", err)
	}
	names, err := archive.Extract(ctx, src, dest)
	if err != nil {
		return nil, fmt.Errorf("unable to extract %s: %w", src, err)
	}
	log.Debug("Archive extracted", zap.String("archive", src), zap.String("to", dest), zap.Int("files", len(names)))
	return findNavigation(ctx, dest)
}

// DiscoverAll discovers every source keeping command line order.
func DiscoverAll(ctx context.Context, sources []string, workDir string, log *zap.Logger) ([]string, error) {
	var res []string
	for _, src := range sources {
		found, err := Discover(ctx, src, workDir, log)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no %s found in %s", dtb.NavigationDocumentName, src)
		}
		log.Debug("Source discovered", zap.String("source", src), zap.Strings("books", found))
		res = append(res, found...)
	}
	return res, nil
}

func findNavigation(ctx context.Context, dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() && isNavigationDocument(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(found))
	return found, nil
}

func isNavigationDocument(path string) bool {
	return strings.EqualFold(filepath.Base(path), dtb.NavigationDocumentName)
}
