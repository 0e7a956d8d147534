// Package ncc reads DAISY 2.02 talking books from disk and turns them into
// merge units: every heading of the navigation document becomes a unit with
// the SMIL, content and audio it covers.
package ncc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"dtbm/dtb"
)

var (
	ErrNoBody       = errors.New("document has no body")
	ErrNoSyncTarget = errors.New("heading link does not point to sync element")
)

// Loader builds merge units out of source books. Parsed documents and probed
// durations are cached, so the same loader could be used for several books
// sharing files.
type Loader struct {
	prober    Prober
	log       *zap.Logger
	docs      documents
	ids       map[*etree.Document]map[string]*etree.Element
	durations map[string]time.Duration
}

func NewLoader(prober Prober, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		prober:    prober,
		log:       log.Named("loader"),
		docs:      make(documents),
		ids:       make(map[*etree.Document]map[string]*etree.Element),
		durations: make(map[string]time.Duration),
	}
}

// Load reads navigation documents in order and returns their top level units
// concatenated.
func (l *Loader) Load(ctx context.Context, nccFiles ...string) ([]dtb.Unit, error) {
	var units []dtb.Unit
	for _, f := range nccFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		us, err := l.loadBook(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("unable to load %s: %w", f, err)
		}
		units = append(units, us...)
	}
	return units, nil
}

func (l *Loader) loadBook(ctx context.Context, file string) ([]dtb.Unit, error) {
	nccURL, err := dtb.FileURL(file)
	if err != nil {
		return nil, err
	}
	doc, err := l.docs.get(nccURL)
	if err != nil {
		return nil, err
	}
	body := dtb.Body(doc)
	if body == nil {
		return nil, ErrNoBody
	}
	log := l.log.With(zap.String("ncc", file))

	var (
		flat   []*unit
		levels []int
	)
	for _, e := range body.ChildElements() {
		if dtb.IsHeading(e) {
			flat = append(flat, &unit{ncc: nccURL, nccDoc: doc})
			levels = append(levels, dtb.HeadingLevel(e))
		}
		if len(flat) == 0 {
			log.Warn("Skipping navigation element before first heading", zap.String("tag", e.Tag))
			continue
		}
		u := flat[len(flat)-1]
		u.nav = append(u.nav, dtb.Fragment{Element: e, Base: nccURL})
	}
	if len(flat) == 0 {
		log.Warn("Navigation document has no headings")
		return nil, nil
	}

	for _, u := range flat {
		if err := l.linkTiming(u); err != nil {
			return nil, err
		}
	}
	if err := l.scopeSync(flat); err != nil {
		return nil, err
	}
	for _, u := range flat {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.scopeContent(u, log); err != nil {
			return nil, err
		}
		if err := l.scopeAudio(ctx, u); err != nil {
			return nil, err
		}
		l.collectMedia(u, log)
	}

	units := nest(flat, levels)
	log.Debug("Book loaded", zap.Int("headings", len(flat)), zap.Int("top level", len(units)))
	return units, nil
}

// linkTiming finds smil file and sync element the unit heading points to.
func (l *Loader) linkTiming(u *unit) error {
	heading := u.nav[0].Element
	a := heading.FindElement(".//a[@href]")
	if a == nil {
		return fmt.Errorf("heading %q has no link to smil file", strings.TrimSpace(heading.Text()))
	}
	ref, err := url.Parse(strings.TrimSpace(a.SelectAttrValue("href", "")))
	if err != nil {
		return fmt.Errorf("heading link: %w", err)
	}
	target := u.ncc.ResolveReference(ref)
	u.smil, u.target = withoutFragment(target), target.Fragment
	return nil
}

type syncStart struct {
	u     *unit
	index int
}

// scopeSync gives every unit main seq children of its smil file starting
// with the one its heading points to and up to the next unit start in the
// same file.
func (l *Loader) scopeSync(flat []*unit) error {
	var (
		order  []string
		starts = make(map[string][]syncStart)
		seqs   = make(map[string][]*etree.Element)
	)
	for _, u := range flat {
		doc, err := l.docs.get(u.smil)
		if err != nil {
			return err
		}
		body := dtb.Body(doc)
		if body == nil || body.SelectElement("seq") == nil {
			return fmt.Errorf("%s: %w", u.smil, dtb.ErrNoMainSeq)
		}
		children := body.SelectElement("seq").ChildElements()

		index := 0
		if u.target != "" {
			if index = indexOfTarget(children, u.target); index < 0 {
				return fmt.Errorf("%s#%s: %w", u.smil, u.target, ErrNoSyncTarget)
			}
		}
		key := strings.ToLower(u.smil.String())
		if _, ok := starts[key]; !ok {
			order = append(order, key)
		}
		starts[key] = append(starts[key], syncStart{u: u, index: index})
		seqs[key] = children
	}

	for _, key := range order {
		list, children := starts[key], seqs[key]
		slices.SortStableFunc(list, func(a, b syncStart) int { return a.index - b.index })
		for i, s := range list {
			end := len(children)
			for _, next := range list[i+1:] {
				if next.index > s.index {
					end = next.index
					break
				}
			}
			if i > 0 && list[i-1].index == s.index {
				l.log.Warn("Several headings point to the same sync element", zap.Stringer("smil", s.u.smil), zap.String("id", s.u.target))
			}
			for _, e := range children[s.index:end] {
				s.u.sync = append(s.u.sync, dtb.Fragment{Element: e, Base: s.u.smil})
			}
		}
	}
	return nil
}

// indexOfTarget returns index of the element which either has the id or
// contains element with it.
func indexOfTarget(elements []*etree.Element, id string) int {
	for i, e := range elements {
		if hasID(e, id) {
			return i
		}
	}
	return -1
}

func hasID(e *etree.Element, id string) bool {
	if e.SelectAttrValue("id", "") == id {
		return true
	}
	for _, c := range e.ChildElements() {
		if hasID(c, id) {
			return true
		}
	}
	return false
}

// scopeContent collects content document body children referenced by unit
// sync elements. All body children between the first and the last referenced
// one are taken, so untimed content (images, tables) is not lost.
func (l *Loader) scopeContent(u *unit, log *zap.Logger) error {
	type span struct {
		base        *url.URL
		body        *etree.Element
		first, last int
	}
	var (
		order []string
		spans = make(map[string]*span)
	)
	for _, f := range u.sync {
		for _, text := range append([]*etree.Element{f.Element}, f.Element.FindElements(".//text")...) {
			if text.Tag != "text" {
				continue
			}
			ref, err := url.Parse(strings.TrimSpace(text.SelectAttrValue("src", "")))
			if err != nil || ref.Fragment == "" {
				continue
			}
			target := f.Base.ResolveReference(ref)
			if sameDocument(target, u.ncc) {
				continue
			}
			doc, err := l.docs.get(target)
			if err != nil {
				return err
			}
			body := dtb.Body(doc)
			if body == nil {
				return fmt.Errorf("%s: %w", target, ErrNoBody)
			}
			e := l.idIndex(doc)[target.Fragment]
			if e == nil {
				log.Warn("Sync element references missing content", zap.String("src", text.SelectAttrValue("src", "")))
				continue
			}
			top := topLevel(e, body)
			if top == nil {
				continue
			}
			index := slices.Index(body.ChildElements(), top)

			key := strings.ToLower(withoutFragment(target).String())
			s, ok := spans[key]
			if !ok {
				s = &span{base: withoutFragment(target), body: body, first: index, last: index}
				spans[key] = s
				order = append(order, key)
			}
			s.first, s.last = min(s.first, index), max(s.last, index)
		}
	}
	for _, key := range order {
		s := spans[key]
		u.contents = append(u.contents, s.base)
		for _, e := range s.body.ChildElements()[s.first : s.last+1] {
			u.text = append(u.text, dtb.Fragment{Element: e, Base: s.base})
		}
	}
	return nil
}

func (l *Loader) idIndex(doc *etree.Document) map[string]*etree.Element {
	ids, ok := l.ids[doc]
	if !ok {
		ids = indexIDs(doc)
		l.ids[doc] = ids
	}
	return ids
}

// topLevel returns ancestor of the element (or element itself) which is
// direct child of body, nil when element is not inside body.
func topLevel(e, body *etree.Element) *etree.Element {
	for p := e.Parent(); p != nil; e, p = p, p.Parent() {
		if p == body {
			return e
		}
	}
	return nil
}

func sameDocument(a, b *url.URL) bool {
	return strings.EqualFold(withoutFragment(a).String(), withoutFragment(b).String())
}

// scopeAudio groups audio clips of unit sync elements by source file.
func (l *Loader) scopeAudio(ctx context.Context, u *unit) error {
	var (
		order []string
		segs  = make(map[string]*dtb.AudioSegment)
	)
	for _, f := range u.sync {
		for _, audio := range append([]*etree.Element{f.Element}, f.Element.FindElements(".//audio")...) {
			if audio.Tag != "audio" {
				continue
			}
			ref, err := url.Parse(strings.TrimSpace(audio.SelectAttrValue("src", "")))
			if err != nil || ref.Path == "" {
				return fmt.Errorf("%s: audio element without usable src", f.Base)
			}
			var begin, end time.Duration
			if v := audio.SelectAttr("clip-begin"); v != nil {
				if begin, err = dtb.ParseClip(v.Value); err != nil {
					return fmt.Errorf("%s: %w", f.Base, err)
				}
			}
			if end, err = dtb.ParseClip(audio.SelectAttrValue("clip-end", "")); err != nil {
				return fmt.Errorf("%s: clip-end: %w", f.Base, err)
			}
			if err := dtb.CheckClip(begin, end); err != nil {
				return fmt.Errorf("%s: %w", f.Base, err)
			}

			file := withoutFragment(f.Base.ResolveReference(ref))
			key := strings.ToLower(file.String())
			s, ok := segs[key]
			if !ok {
				s = &dtb.AudioSegment{File: file, ClipBegin: begin, ClipEnd: end}
				segs[key] = s
				order = append(order, key)
			}
			s.ClipBegin, s.ClipEnd = min(s.ClipBegin, begin), max(s.ClipEnd, end)
		}
	}
	for _, key := range order {
		s := segs[key]
		name, err := locate(s.File)
		if err != nil {
			return err
		}
		if s.File, err = dtb.FileURL(name); err != nil {
			return err
		}
		if s.FileDuration, err = l.fileDuration(ctx, name); err != nil {
			return err
		}
		u.segments = append(u.segments, *s)
	}
	return nil
}

func (l *Loader) fileDuration(ctx context.Context, name string) (time.Duration, error) {
	if d, ok := l.durations[name]; ok {
		return d, nil
	}
	if kind, err := filetype.MatchFile(name); err != nil {
		return 0, fmt.Errorf("unable to check audio file type: %w", err)
	} else if kind.MIME.Type != "audio" {
		l.log.Warn("File does not look like audio", zap.String("file", name), zap.String("type", kind.MIME.Value))
	}
	d, err := l.prober.Duration(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("unable to get duration of %s: %w", name, err)
	}
	l.log.Debug("Audio probed", zap.String("file", name), zap.Duration("duration", d))
	l.durations[name] = d
	return d, nil
}

// collectMedia finds images referenced by unit content elements. Media keeps
// its relative name, so references in merged content stay valid.
func (l *Loader) collectMedia(u *unit, log *zap.Logger) {
	for _, f := range u.text {
		for _, img := range append([]*etree.Element{f.Element}, f.Element.FindElements(".//img")...) {
			if img.Tag != "img" {
				continue
			}
			src := strings.TrimSpace(img.SelectAttrValue("src", ""))
			ref, err := url.Parse(src)
			if err != nil || ref.IsAbs() || ref.Path == "" || strings.HasPrefix(ref.Path, "/") {
				log.Warn("Skipping media with unsupported location", zap.String("src", src))
				continue
			}
			name, err := locate(f.Base.ResolveReference(ref))
			if err != nil {
				log.Warn("Media file not found", zap.String("src", src), zap.Error(err))
				continue
			}
			if kind, err := filetype.MatchFile(name); err == nil && kind.MIME.Type != "image" {
				log.Warn("Media file does not look like image", zap.String("file", name), zap.String("type", kind.MIME.Value))
			}
			source, err := dtb.FileURL(name)
			if err != nil {
				continue
			}
			u.media = append(u.media, dtb.MediaEntry{Source: source, Name: path.Clean(ref.Path)})
		}
	}
}
