package dtb

import (
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"dtbm/common"
	"dtbm/misc"
)

// accumulator carries running counters from one unit to the next.
type accumulator struct {
	navID     int
	contentID int
	index     int
	elapsed   time.Duration
}

// unitOutput is everything produced for a single unit.
type unitOutput struct {
	nav      []Fragment
	content  []Fragment
	timing   *etree.Document
	segments []AudioSegment
}

// Builder merges units into a Book.
type Builder struct {
	units     []Unit
	generator string
	log       *zap.Logger
}

// Option changes Builder defaults.
type Option func(*Builder)

// WithGenerator sets generator identity written into produced documents.
func WithGenerator(generator string) Option {
	return func(b *Builder) {
		if len(generator) > 0 {
			b.generator = generator
		}
	}
}

// NewBuilder creates builder for the top level units. Units are merged in
// order, each followed by its descendants. Nil log discards all messages.
func NewBuilder(units []Unit, log *zap.Logger, opts ...Option) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Builder{
		units:     slices.Clone(units),
		generator: misc.GetGenerator(),
		log:       log.Named("builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build performs single pass over flattened units and returns merged book.
// Nothing is returned on error, build has to be repeated from scratch.
func (b *Builder) Build() (*Book, error) {
	if len(b.units) == 0 {
		return nil, ErrNoUnits
	}

	entries := Flatten(b.units...)
	book := &Book{
		Navigation: NewXHTMLSkeleton(),
		AudioExt:   audioExtension(entries),
	}
	for _, u := range entries {
		if len(u.TextElements()) > 0 {
			book.Content = NewXHTMLSkeleton()
			break
		}
	}

	meta := timingMeta{
		generator:  b.generator,
		identifier: MetaContent(entries[0].NavigationDocument(), "dc:identifier"),
	}
	if meta.identifier == "" {
		meta.identifier = uuid.NewString()
		b.log.Debug("First navigation document has no identifier, generated new one", zap.String("identifier", meta.identifier))
	}

	b.log.Info("Merging", zap.Int("units", len(entries)), zap.Bool("full text", book.Content != nil))

	var (
		acc      accumulator
		out      unitOutput
		err      error
		syncIDs  = make(map[string]int)
		navBody  = Body(book.Navigation)
		textBody = Body(book.Content)
	)
	for _, u := range entries {
		unit := acc.index
		out, acc, err = b.step(u, acc, book.AudioExt, meta)
		if err != nil {
			return nil, err
		}
		b.checkSyncIDs(out.timing, unit, syncIDs)

		for _, f := range out.nav {
			navBody.AddChild(f.Element)
		}
		if textBody != nil {
			for _, f := range out.content {
				textBody.AddChild(f.Element)
			}
		}
		book.Timing = append(book.Timing, out.timing)
		book.Segments = append(book.Segments, out.segments)
		book.Media = append(book.Media, u.MediaEntries()...)
	}

	book.Stats = computeStats(entries, book, acc.elapsed)
	b.writeNavigationHead(book, entries[0].NavigationDocument())

	b.log.Info("Merged",
		zap.String("total time", FormatHHMMSS(book.Stats.TotalTime)),
		zap.Int("files", book.Stats.Files),
		zap.Int("depth", book.Stats.Depth),
		zap.Stringer("type", book.Stats.MultimediaType))
	return book, nil
}

// step processes single unit, returning its output and advanced accumulator.
func (b *Builder) step(u Unit, acc accumulator, audioExt string, meta timingMeta) (unitOutput, accumulator, error) {
	log := b.log.With(zap.Int("unit", acc.index), zap.Stringer("ncc", u.NavigationSource()))

	frags, acc := b.rewriteUnit(u, acc, log)
	if !normalizeHeading(frags.nav, u.Depth()) {
		log.Warn("Unit has no heading in navigation elements")
	}

	segments := slices.Clone(u.AudioSegments())
	fixAudioSources(frags.sync, segments, audioFileName(acc.index, audioExt))

	doc, inThisSmil, err := emitTiming(frags.sync, acc.elapsed, meta)
	if err != nil {
		return unitOutput{}, acc, err
	}
	log.Debug("Timing emitted",
		zap.String("file", TimingFileName(acc.index)),
		zap.String("elapsed", FormatHHMMSS(acc.elapsed)),
		zap.Duration("duration", inThisSmil))

	acc.elapsed += ceilSeconds(inThisSmil)
	acc.index++
	return unitOutput{
		nav:      frags.nav,
		content:  frags.content,
		timing:   doc,
		segments: segments,
	}, acc, nil
}

// checkSyncIDs reports sync element ids which were already used by another
// unit. Such ids are left as they are.
func (b *Builder) checkSyncIDs(timing *etree.Document, unit int, seen map[string]int) {
	seq, err := mainSeq(timing)
	if err != nil {
		return
	}
	walk(seq, func(e *etree.Element) {
		id := e.SelectAttrValue("id", "")
		if id == "" {
			return
		}
		if prev, ok := seen[id]; ok && prev != unit {
			b.log.Warn("Sync element id is not unique across merged units",
				zap.String("id", id), zap.String("first", TimingFileName(prev)), zap.String("again", TimingFileName(unit)))
			return
		}
		seen[id] = unit
	})
}

// audioExtension returns lower case extension of the first available audio
// segment file.
func audioExtension(entries []Unit) string {
	for _, u := range entries {
		for _, s := range u.AudioSegments() {
			if s.File != nil {
				return strings.ToLower(path.Ext(s.File.Path))
			}
		}
	}
	return ""
}

func computeStats(entries []Unit, book *Book, elapsed time.Duration) Stats {
	st := Stats{
		TotalTime: elapsed,
		TOCItems:  len(entries),
		Pages:     make(map[common.PageKind]int),
		Files:     1 + 2*len(book.Timing),
	}
	if book.Content != nil {
		st.Files++
		st.MultimediaType = common.MultimediaTypeAudioFullText
	}
	for _, u := range entries {
		st.Files += len(u.MediaEntries())
		st.Depth = max(st.Depth, u.Depth())
		for _, f := range u.NavigationElements() {
			if f.Element == nil || f.Element.Tag != "span" {
				continue
			}
			if kind, ok := common.ParsePageKind(f.Element.SelectAttrValue("class", "")); ok {
				st.Pages[kind]++
			}
		}
	}
	return st
}

// writeNavigationHead copies header of the first source navigation document
// and writes recomputed summary metadata.
func (b *Builder) writeNavigationHead(book *Book, src *etree.Document) {
	doc := book.Navigation
	head := Head(doc)

	if srcHead := Head(src); srcHead != nil {
		if title := srcHead.SelectElement("title"); title != nil {
			head.InsertChildAt(0, title.Copy())
		}
		for _, m := range srcHead.SelectElements("meta") {
			if m.SelectAttr("http-equiv") != nil {
				continue
			}
			head.AddChild(m.Copy())
		}
	}

	// language is copied as is
	if lang := MetaContent(doc, "dc:language"); lang != "" {
		if _, err := language.Parse(lang); err != nil {
			b.log.Warn("Book language is not a valid language tag", zap.String("language", lang), zap.Error(err))
		}
	}

	st := book.Stats
	SetMeta(doc, "ncc:totalTime", FormatHHMMSS(st.TotalTime))
	SetMeta(doc, "ncc:files", strconv.Itoa(st.Files))
	SetMeta(doc, "ncc:depth", strconv.Itoa(st.Depth))
	SetMeta(doc, "ncc:tocItems", strconv.Itoa(st.TOCItems))
	for _, kind := range common.PageKinds() {
		SetMeta(doc, kind.MetaName(), strconv.Itoa(st.Pages[kind]))
	}
	SetMeta(doc, "ncc:multimediaType", st.MultimediaType.String())
	SetMeta(doc, "ncc:generator", b.generator)
}
