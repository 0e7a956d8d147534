package dtb

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"dtbm/common"
)

const (
	NavigationDocumentName = "ncc.html"
	ContentDocumentName    = "text.html"
)

// TimingFileName returns name of the smil file generated for unit with the
// given index.
func TimingFileName(index int) string {
	return fmt.Sprintf("SM%05d.smil", index)
}

// audioFileName returns name of the audio file generated for unit with the
// given index.
func audioFileName(index int, ext string) string {
	return fmt.Sprintf("AUD%05d%s", index, ext)
}

// Stats holds summary values written into navigation document.
type Stats struct {
	TotalTime      time.Duration
	Files          int
	Depth          int
	TOCItems       int
	Pages          map[common.PageKind]int
	MultimediaType common.MultimediaType
}

// Book is the result of a merge: all generated documents and information
// necessary to produce audio files. Timing and Segments are index aligned with
// flattened merge units.
type Book struct {
	Navigation *etree.Document
	// Content is nil when none of the units had full text.
	Content  *etree.Document
	Timing   []*etree.Document
	Segments [][]AudioSegment
	Media    []MediaEntry
	// AudioExt is extension (with dot) of all generated audio files.
	AudioExt string
	Stats    Stats
}

// AudioFileName returns name of the audio file generated for unit with the
// given index.
func (b *Book) AudioFileName(index int) string {
	return audioFileName(index, b.AudioExt)
}

// XMLDocumentNames returns names of all generated XML documents: navigation
// document first, then content document (if any), then smil files in order.
func (b *Book) XMLDocumentNames() []string {
	names := make([]string, 0, len(b.Timing)+2)
	if b.Navigation != nil {
		names = append(names, NavigationDocumentName)
	}
	if b.Content != nil {
		names = append(names, ContentDocumentName)
	}
	for i := range b.Timing {
		names = append(names, TimingFileName(i))
	}
	return names
}

// XMLDocuments returns all generated XML documents by file name.
func (b *Book) XMLDocuments() map[string]*etree.Document {
	docs := make(map[string]*etree.Document, len(b.Timing)+2)
	if b.Navigation != nil {
		docs[NavigationDocumentName] = b.Navigation
	}
	if b.Content != nil {
		docs[ContentDocumentName] = b.Content
	}
	for i, d := range b.Timing {
		docs[TimingFileName(i)] = d
	}
	return docs
}

// AudioFileNames returns names of the audio files to be generated in order.
func (b *Book) AudioFileNames() []string {
	names := make([]string, len(b.Segments))
	for i := range b.Segments {
		names[i] = b.AudioFileName(i)
	}
	return names
}

// AudioFiles returns audio segments making up every generated audio file.
func (b *Book) AudioFiles() map[string][]AudioSegment {
	files := make(map[string][]AudioSegment, len(b.Segments))
	for i, s := range b.Segments {
		files[b.AudioFileName(i)] = s
	}
	return files
}
