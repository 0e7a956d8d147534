package dtb

import (
	"fmt"
	"net/url"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	navIDPrefix     = "NCCID"
	contentIDPrefix = "TEXTID"
)

type idKey struct {
	doc string
	id  string
}

// idTable maps identifiers of source documents to references into merged
// documents ("ncc.html#NCCID00012").
type idTable map[idKey]string

func (t idTable) lookup(target *url.URL) (string, bool) {
	if target == nil || target.Fragment == "" {
		return "", false
	}
	ref, ok := t[idKey{doc: docKey(target), id: target.Fragment}]
	return ref, ok
}

// unitFragments holds deep copies of unit elements already rewritten into
// merged namespace.
type unitFragments struct {
	nav     []Fragment
	content []Fragment
	sync    []Fragment
}

// rewriteUnit clones all elements of the unit and relabels them. Sync element
// ids are never changed, only their references to navigation and content
// elements. Counters are taken from and returned in accumulator.
func (b *Builder) rewriteUnit(u Unit, acc accumulator, log *zap.Logger) (unitFragments, accumulator) {
	var res unitFragments
	table := make(idTable)

	res.sync = cloneAll(u.SyncElements())

	// first stage - assign new ids, remembering old ones
	res.nav, acc.navID = relabel(u.NavigationElements(), navIDPrefix, acc.navID, NavigationDocumentName,
		[]*url.URL{u.NavigationSource()}, table, log)
	res.content, acc.contentID = relabel(u.TextElements(), contentIDPrefix, acc.contentID, ContentDocumentName,
		u.ContentSources(), table, log)

	// second stage - fix references by lookup
	fixed := fixSyncReferences(res.sync, table)

	smilName := TimingFileName(acc.index)
	links := fixTimingLinks(res.nav, u.SyncSource(), smilName)
	links += fixTimingLinks(res.content, u.SyncSource(), smilName)

	log.Debug("Unit relabeled",
		zap.Int("index", acc.index),
		zap.Int("ids", len(table)),
		zap.Int("sync references", fixed),
		zap.Int("links", links))
	return res, acc
}

func cloneAll(frags []Fragment) []Fragment {
	res := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if f.Element == nil {
			continue
		}
		res = append(res, f.clone())
	}
	return res
}

// relabel clones fragments and gives every element carrying id attribute a
// new id made of prefix and counter. Mapping from old ids of the fragments
// belonging to one of the docs is stored in the table.
func relabel(frags []Fragment, prefix string, next int, docName string, docs []*url.URL, table idTable, log *zap.Logger) ([]Fragment, int) {
	res := cloneAll(frags)
	for _, f := range res {
		owned := false
		for _, d := range docs {
			if refersTo(f.Base, d) {
				owned = true
				break
			}
		}
		walk(f.Element, func(e *etree.Element) {
			attr := e.SelectAttr("id")
			if attr == nil {
				return
			}
			newID := fmt.Sprintf("%s%05d", prefix, next)
			next++
			if owned {
				key := idKey{doc: docKey(f.Base), id: attr.Value}
				if _, exists := table[key]; exists {
					log.Debug("Duplicate source id, keeping first mapping", zap.String("id", attr.Value), zap.Stringer("doc", f.Base))
				} else {
					table[key] = docName + "#" + newID
				}
			}
			attr.Value = newID
		})
	}
	return res, next
}

// fixSyncReferences rewrites src of text children of sync elements which
// point to relabeled elements. Returns number of rewritten references.
func fixSyncReferences(sync []Fragment, table idTable) int {
	count := 0
	for _, f := range sync {
		text := f.Element.SelectElement("text")
		if text == nil {
			continue
		}
		src := text.SelectAttr("src")
		if src == nil {
			continue
		}
		if ref, ok := table.lookup(resolve(f.Base, src.Value)); ok {
			src.Value = ref
			count++
		}
	}
	return count
}

// fixTimingLinks points anchors referencing source smil file to the smil file
// generated for the unit, fragment is preserved.
func fixTimingLinks(frags []Fragment, smilSource *url.URL, smilName string) int {
	count := 0
	for _, f := range frags {
		walk(f.Element, func(e *etree.Element) {
			if e.Tag != "a" {
				return
			}
			href := e.SelectAttr("href")
			if href == nil {
				return
			}
			target := resolve(f.Base, href.Value)
			if !refersTo(target, smilSource) {
				return
			}
			href.Value = smilName + fragmentSuffix(target)
			count++
		})
	}
	return count
}

// normalizeHeading sets level of the first heading among navigation elements
// to the unit depth, limited to the deepest allowed heading.
func normalizeHeading(nav []Fragment, depth int) bool {
	level := min(max(depth, 1), MaxHeadingDepth)
	for _, f := range nav {
		if IsHeading(f.Element) {
			f.Element.Tag = fmt.Sprintf("h%d", level)
			return true
		}
	}
	return false
}
