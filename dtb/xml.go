package dtb

import (
	"github.com/beevik/etree"
)

const (
	XHTMLNamespace = "http://www.w3.org/1999/xhtml"

	xhtmlDoctype = `DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd"`
	smilDoctype  = `DOCTYPE smil PUBLIC "-//W3C//DTD SMIL 1.0//EN" "http://www.w3.org/TR/REC-SMIL/SMIL10.dtd"`

	// MaxHeadingDepth is the deepest heading level XHTML allows.
	MaxHeadingDepth = 6
)

// NewXHTMLSkeleton creates empty XHTML 1.0 document with head and body.
func NewXHTMLSkeleton() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.CreateDirective(xhtmlDoctype)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", XHTMLNamespace)
	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-type")
	meta.CreateAttr("content", "text/html; charset=utf-8")
	html.CreateElement("body")
	return doc
}

// NewSMILSkeleton creates empty Daisy 2.02 SMIL 1.0 document with main seq.
func NewSMILSkeleton() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.CreateDirective(smilDoctype)

	smil := doc.CreateElement("smil")
	head := smil.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", "dc:format")
	meta.CreateAttr("content", "Daisy 2.02")
	head.CreateElement("layout").CreateElement("region").CreateAttr("id", "txtView")
	smil.CreateElement("body").CreateElement("seq")
	return doc
}

// Body returns body element of XHTML or SMIL document.
func Body(doc *etree.Document) *etree.Element {
	if doc == nil || doc.Root() == nil {
		return nil
	}
	return doc.Root().SelectElement("body")
}

// Head returns head element of XHTML or SMIL document.
func Head(doc *etree.Document) *etree.Element {
	if doc == nil || doc.Root() == nil {
		return nil
	}
	return doc.Root().SelectElement("head")
}

// getMeta looks for head meta with the given name, optionally creating it.
func getMeta(doc *etree.Document, name string, create bool) *etree.Element {
	head := Head(doc)
	if head == nil {
		return nil
	}
	for _, m := range head.SelectElements("meta") {
		if m.SelectAttrValue("name", "") == name {
			return m
		}
	}
	if !create {
		return nil
	}
	m := head.CreateElement("meta")
	m.CreateAttr("name", name)
	return m
}

// MetaContent returns content of the named meta or empty string.
func MetaContent(doc *etree.Document, name string) string {
	if m := getMeta(doc, name, false); m != nil {
		return m.SelectAttrValue("content", "")
	}
	return ""
}

// SetMeta sets content of the named meta creating it when necessary. Returns
// nil when document has no head.
func SetMeta(doc *etree.Document, name, content string) *etree.Element {
	m := getMeta(doc, name, true)
	if m != nil {
		m.CreateAttr("content", content)
	}
	return m
}

// IsHeading reports if element is one of h1-h6.
func IsHeading(e *etree.Element) bool {
	return HeadingLevel(e) > 0
}

// HeadingLevel returns level of h1-h6 element or 0.
func HeadingLevel(e *etree.Element) int {
	if e == nil || len(e.Tag) != 2 || e.Tag[0] != 'h' {
		return 0
	}
	if l := int(e.Tag[1] - '0'); l >= 1 && l <= MaxHeadingDepth {
		return l
	}
	return 0
}

// walk calls fn for the element and all its descendants in document order.
func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, c := range e.ChildElements() {
		walk(c, fn)
	}
}
