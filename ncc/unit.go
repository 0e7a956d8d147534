package ncc

import (
	"net/url"

	"github.com/beevik/etree"

	"dtbm/dtb"
)

// unit is a single heading of the source navigation document with all
// elements belonging to it.
type unit struct {
	depth    int
	children []dtb.Unit

	ncc      *url.URL
	nccDoc   *etree.Document
	smil     *url.URL
	target   string // fragment of the heading link
	contents []*url.URL

	nav      []dtb.Fragment
	text     []dtb.Fragment
	sync     []dtb.Fragment
	segments []dtb.AudioSegment
	media    []dtb.MediaEntry
}

func (u *unit) Depth() int                          { return u.depth }
func (u *unit) Children() []dtb.Unit                { return u.children }
func (u *unit) NavigationSource() *url.URL          { return u.ncc }
func (u *unit) SyncSource() *url.URL                { return u.smil }
func (u *unit) ContentSources() []*url.URL          { return u.contents }
func (u *unit) NavigationDocument() *etree.Document { return u.nccDoc }
func (u *unit) NavigationElements() []dtb.Fragment  { return u.nav }
func (u *unit) TextElements() []dtb.Fragment        { return u.text }
func (u *unit) SyncElements() []dtb.Fragment        { return u.sync }
func (u *unit) AudioSegments() []dtb.AudioSegment   { return u.segments }
func (u *unit) MediaEntries() []dtb.MediaEntry      { return u.media }

// nest builds unit tree out of units in document order, heading levels
// define nesting.
func nest(flat []*unit, levels []int) []dtb.Unit {
	var (
		top   []dtb.Unit
		stack []*unit
		lvls  []int
	)
	for i, u := range flat {
		for len(stack) > 0 && lvls[len(lvls)-1] >= levels[i] {
			stack, lvls = stack[:len(stack)-1], lvls[:len(lvls)-1]
		}
		u.depth = len(stack) + 1
		if len(stack) == 0 {
			top = append(top, u)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, u)
		}
		stack, lvls = append(stack, u), append(lvls, levels[i])
	}
	return top
}
