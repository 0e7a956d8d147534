package dtb

import (
	"net/url"
	"testing"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("parse url %q: %v", s, err)
	}
	return u
}

// fragments parses XML snippet (sequence of elements) into fragments based
// at the given location.
func fragments(t *testing.T, base *url.URL, snippet string) []Fragment {
	t.Helper()
	if snippet == "" {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<wrapper>" + snippet + "</wrapper>"); err != nil {
		t.Fatalf("parse snippet: %v", err)
	}
	var res []Fragment
	for _, e := range doc.Root().ChildElements() {
		res = append(res, Fragment{Element: e, Base: base})
	}
	return res
}

type testUnit struct {
	depth    int
	children []Unit

	ncc      *url.URL
	smil     *url.URL
	contents []*url.URL
	nccDoc   *etree.Document

	nav      []Fragment
	text     []Fragment
	sync     []Fragment
	segments []AudioSegment
	media    []MediaEntry
}

func (u *testUnit) Depth() int                          { return u.depth }
func (u *testUnit) Children() []Unit                    { return u.children }
func (u *testUnit) NavigationSource() *url.URL          { return u.ncc }
func (u *testUnit) SyncSource() *url.URL                { return u.smil }
func (u *testUnit) ContentSources() []*url.URL          { return u.contents }
func (u *testUnit) NavigationDocument() *etree.Document { return u.nccDoc }
func (u *testUnit) NavigationElements() []Fragment      { return u.nav }
func (u *testUnit) TextElements() []Fragment            { return u.text }
func (u *testUnit) SyncElements() []Fragment            { return u.sync }
func (u *testUnit) AudioSegments() []AudioSegment       { return u.segments }
func (u *testUnit) MediaEntries() []MediaEntry          { return u.media }

type unitSpec struct {
	depth   int
	dir     string // book location, e.g. "file:///books/one/"
	smil    string // smil file name in book
	nav     string
	text    string
	sync    string
	audio   string // audio file name in book
	clipEnd time.Duration
	fileDur time.Duration
}

func newTestUnit(t *testing.T, s unitSpec) *testUnit {
	t.Helper()
	dir := mustURL(t, s.dir)
	u := &testUnit{
		depth: s.depth,
		ncc:   dir.ResolveReference(mustURL(t, "ncc.html")),
		smil:  dir.ResolveReference(mustURL(t, s.smil)),
	}
	u.nccDoc = NewXHTMLSkeleton()
	SetMeta(u.nccDoc, "dc:identifier", "book-id")
	SetMeta(u.nccDoc, "dc:format", "Daisy 2.02")

	u.nav = fragments(t, u.ncc, s.nav)
	if s.text != "" {
		content := dir.ResolveReference(mustURL(t, "content.html"))
		u.contents = []*url.URL{content}
		u.text = fragments(t, content, s.text)
	}
	u.sync = fragments(t, u.smil, s.sync)
	if s.audio != "" {
		u.segments = []AudioSegment{{
			File:         dir.ResolveReference(mustURL(t, s.audio)),
			ClipEnd:      s.clipEnd,
			FileDuration: s.fileDur,
		}}
	}
	return u
}

func metaOf(t *testing.T, doc *etree.Document, name string) string {
	t.Helper()
	m := getMeta(doc, name, false)
	if m == nil {
		t.Fatalf("meta %q not found", name)
	}
	return m.SelectAttrValue("content", "")
}
