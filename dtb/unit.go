// Package dtb merges several DAISY 2.02 talking books (or parts of them) into
// a single consistent book.
//
// Input is an ordered tree of merge units produced by a loader (see package
// ncc). Builder walks the flattened tree once, rewrites identifiers and links
// of every unit into the merged namespace, emits one SMIL file per unit and
// assembles merged ncc.html and, when there is full text, text.html. Save
// writes resulting Book into a directory, copying audio files verbatim.
package dtb

import (
	"net/url"
	"time"

	"github.com/beevik/etree"
)

// Fragment is an element of a source document together with the location of
// that document, which is necessary to resolve relative references.
type Fragment struct {
	Element *etree.Element
	Base    *url.URL
}

// clone makes a deep copy of the fragment element, keeping base location.
func (f Fragment) clone() Fragment {
	return Fragment{Element: f.Element.Copy(), Base: f.Base}
}

// AudioSegment is a clip of a source audio file.
type AudioSegment struct {
	File         *url.URL
	ClipBegin    time.Duration
	ClipEnd      time.Duration
	FileDuration time.Duration
}

// Duration returns length of the clip.
func (s AudioSegment) Duration() time.Duration {
	return s.ClipEnd - s.ClipBegin
}

// MediaEntry is a non-audio resource (image) referenced by content.
type MediaEntry struct {
	Source *url.URL
	// Name is relative path of the resource inside the book.
	Name string
}

// Unit is a single node of the merge outline: one heading with everything
// belonging to it in its source book. All element accessors are scoped to the
// unit itself, never to its children.
type Unit interface {
	// Depth is 1-based heading level.
	Depth() int
	Children() []Unit

	NavigationSource() *url.URL
	SyncSource() *url.URL
	ContentSources() []*url.URL
	// NavigationDocument is parsed source ncc, used for header metadata.
	NavigationDocument() *etree.Document

	NavigationElements() []Fragment
	TextElements() []Fragment
	SyncElements() []Fragment
	AudioSegments() []AudioSegment
	MediaEntries() []MediaEntry
}

// Flatten returns units with all their descendants in pre-order.
func Flatten(units ...Unit) []Unit {
	var res []Unit
	for _, u := range units {
		res = append(res, u)
		res = append(res, Flatten(u.Children()...)...)
	}
	return res
}
