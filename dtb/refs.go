package dtb

import (
	"net/url"
	"path"
	"strings"
)

// resolve returns absolute location referenced by value relative to base.
// Unparsable values yield nil.
func resolve(base *url.URL, value string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	if base == nil {
		if !ref.IsAbs() {
			return nil
		}
		return ref
	}
	return base.ResolveReference(ref)
}

// docKey identifies a document ignoring fragment and query. Paths are
// compared case-insensitively: DTBs produced on Windows routinely differ in
// file name case between references and actual files.
func docKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return strings.ToLower(u.Scheme + "://" + u.Host + path.Clean("/"+p))
}

// refersTo reports if location points to the document, fragment ignored.
func refersTo(target, doc *url.URL) bool {
	return target != nil && doc != nil && docKey(target) == docKey(doc)
}

// fragmentSuffix returns "#fragment" part of the location or empty string.
func fragmentSuffix(u *url.URL) string {
	if u == nil || u.Fragment == "" {
		return ""
	}
	return "#" + u.EscapedFragment()
}
