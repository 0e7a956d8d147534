// Package common keeps small vocabulary types shared by the merge engine,
// the source loader and configuration.
package common

import "fmt"

// Kind of page number marker in navigation document.
type PageKind int

const (
	PageKindFront PageKind = iota
	PageKindNormal
	PageKindSpecial
)

var pageKindNames = [...]string{"front", "normal", "special"}

// PageKinds lists all page kinds in the order metadata is written.
func PageKinds() []PageKind {
	return []PageKind{PageKindFront, PageKindNormal, PageKindSpecial}
}

func (k PageKind) String() string {
	if k < 0 || int(k) >= len(pageKindNames) {
		return fmt.Sprintf("PageKind(%d)", int(k))
	}
	return pageKindNames[k]
}

// Class returns value of class attribute used to mark page spans.
func (k PageKind) Class() string {
	return "page-" + k.String()
}

// MetaName returns name of the navigation document meta counting pages of this kind.
func (k PageKind) MetaName() string {
	s := k.String()
	return "ncc:page" + string(s[0]-'a'+'A') + s[1:]
}

// ParsePageKind recognizes page kind by class attribute value.
func ParsePageKind(class string) (PageKind, bool) {
	for i, name := range pageKindNames {
		if class == "page-"+name {
			return PageKind(i), true
		}
	}
	return 0, false
}

// Content type indicator of the produced book.
type MultimediaType int

const (
	MultimediaTypeAudioNCC MultimediaType = iota
	MultimediaTypeAudioFullText
)

func (m MultimediaType) String() string {
	switch m {
	case MultimediaTypeAudioNCC:
		return "audioNCC"
	case MultimediaTypeAudioFullText:
		return "audioFullText"
	default:
		return fmt.Sprintf("MultimediaType(%d)", int(m))
	}
}
