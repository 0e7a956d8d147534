package dtb

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultAllowedFileEndAudio is how much audio may follow clip-end of the
// single segment before source file could not be copied as is.
const DefaultAllowedFileEndAudio = 1500 * time.Millisecond

// SaveOptions controls how book is written out.
type SaveOptions struct {
	AllowedFileEndAudio time.Duration
}

// Save writes book into directory. Everything already present in the
// directory is removed first. XML documents and media are written before
// audio files, audio files are produced in order and the first one which
// cannot be produced from its segments stops the process. Nil log discards all
// messages.
func Save(ctx context.Context, book *Book, dir string, opts SaveOptions, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("save")

	if err := clearDir(dir); err != nil {
		return fmt.Errorf("unable to clear destination directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create destination directory: %w", err)
	}
	log.Info("Saving book", zap.String("destination", dir))

	docs := book.XMLDocuments()
	for _, name := range book.XMLDocumentNames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := docs[name].WriteToFile(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("unable to write %s: %w", name, err)
		}
		log.Debug("Document written", zap.String("file", name))
	}

	if err := saveMedia(ctx, book.Media, dir, log); err != nil {
		return err
	}

	for i, name := range book.AudioFileNames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg, err := singleSegment(name, book.Segments[i], opts.AllowedFileEndAudio)
		if err != nil {
			return err
		}
		src, err := LocalPath(seg.File)
		if err != nil {
			return &AudioMappingError{Name: name, Segment: seg, Err: err}
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("unable to copy audio file %s: %w", name, err)
		}
		log.Debug("Audio copied", zap.String("file", name), zap.String("source", src))
	}
	log.Info("Book saved",
		zap.Int("documents", len(docs)),
		zap.Int("audio", len(book.Segments)),
		zap.Int("media", len(book.Media)))
	return nil
}

// singleSegment checks that audio file could be produced by copying source
// audio file of its only segment and returns that segment.
func singleSegment(name string, segments []AudioSegment, allowed time.Duration) (AudioSegment, error) {
	switch len(segments) {
	case 0:
		return AudioSegment{}, &AudioMappingError{Name: name, Err: ErrNoSegments}
	case 1:
	default:
		return AudioSegment{}, &AudioMappingError{Name: name, Segment: segments[0], Err: ErrMultipleSegments}
	}
	seg := segments[0]
	if seg.FileDuration < seg.ClipEnd {
		return seg, &AudioMappingError{Name: name, Segment: seg, Err: ErrClipBeyondFile}
	}
	if seg.FileDuration >= seg.ClipEnd+allowed {
		return seg, &AudioMappingError{Name: name, Segment: seg, Err: ErrTrailingAudio}
	}
	return seg, nil
}

func saveMedia(ctx context.Context, media []MediaEntry, dir string, log *zap.Logger) error {
	done := make(map[string]bool, len(media))
	for _, m := range media {
		if err := ctx.Err(); err != nil {
			return err
		}
		if done[m.Name] {
			continue
		}
		done[m.Name] = true

		rel := filepath.FromSlash(m.Name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("media entry %q: unsafe path", m.Name)
		}
		src, err := LocalPath(m.Source)
		if err != nil {
			return fmt.Errorf("media entry %q: %w", m.Name, err)
		}
		if kind, err := filetype.MatchFile(src); err == nil && kind == filetype.Unknown {
			log.Warn("Media file type not recognized", zap.String("file", m.Name))
		} else if err == nil {
			log.Debug("Copying media", zap.String("file", m.Name), zap.String("type", kind.MIME.Value))
		}
		dst := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("unable to create media directory: %w", err)
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("unable to copy media %s: %w", m.Name, err)
		}
	}
	return nil
}

// clearDir removes all files and subdirectories of existing directory.
func clearDir(dir string) (err error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		err = multierr.Append(err, os.RemoveAll(filepath.Join(dir, e.Name())))
	}
	return err
}

// LocalPath converts file URL into local file system path.
func LocalPath(u *url.URL) (string, error) {
	if u == nil {
		return "", fmt.Errorf("no location")
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("not a local file: %s", u)
	}
	p := u.Path
	if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

// FileURL converts local file system path into absolute file URL.
func FileURL(path string) (*url.URL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	p := filepath.ToSlash(abs)
	if p[0] != '/' {
		p = "/" + p
	}
	return &url.URL{Scheme: "file", Path: p}, nil
}

func copyFile(src, dst string) (err error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		destinationFile.Close()
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
