package dtb

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// timingMeta is unit independent information written into every smil file.
type timingMeta struct {
	generator  string
	identifier string
}

// mainSeq returns main seq element of the smil document.
func mainSeq(doc *etree.Document) (*etree.Element, error) {
	body := Body(doc)
	if body == nil {
		return nil, ErrNoMainSeq
	}
	seq := body.SelectElement("seq")
	if seq == nil {
		return nil, ErrNoMainSeq
	}
	return seq, nil
}

// syncDuration sums lengths of all audio clips found in sync elements.
func syncDuration(sync []Fragment) (time.Duration, error) {
	var total time.Duration
	var err error
	for _, f := range sync {
		walk(f.Element, func(e *etree.Element) {
			if err != nil || e.Tag != "audio" {
				return
			}
			var begin, end time.Duration
			if v := e.SelectAttr("clip-begin"); v != nil {
				if begin, err = ParseClip(v.Value); err != nil {
					err = fmt.Errorf("clip-begin: %w", err)
					return
				}
			}
			v := e.SelectAttr("clip-end")
			if v == nil {
				err = fmt.Errorf("%w: audio %q has no clip-end", ErrBadClip, e.SelectAttrValue("id", e.SelectAttrValue("src", "")))
				return
			}
			if end, err = ParseClip(v.Value); err != nil {
				err = fmt.Errorf("clip-end: %w", err)
				return
			}
			if err = CheckClip(begin, end); err != nil {
				return
			}
			total += end - begin
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// fixAudioSources points audio elements referencing the single source audio
// file of the unit to the generated audio file.
func fixAudioSources(sync []Fragment, segments []AudioSegment, audioName string) int {
	if len(segments) != 1 {
		return 0
	}
	count := 0
	for _, f := range sync {
		walk(f.Element, func(e *etree.Element) {
			if e.Tag != "audio" {
				return
			}
			if src := e.SelectAttr("src"); src != nil && refersTo(resolve(f.Base, src.Value), segments[0].File) {
				src.Value = audioName
				count++
			}
		})
	}
	return count
}

// emitTiming produces smil file for the unit out of its (already cloned and
// rewritten) sync elements. Elapsed time before the unit is taken from the
// accumulator, which is not advanced here. Returns the document and exact
// time of audio in it.
func emitTiming(sync []Fragment, elapsed time.Duration, meta timingMeta) (*etree.Document, time.Duration, error) {
	doc := NewSMILSkeleton()
	seq, err := mainSeq(doc)
	if err != nil {
		return nil, 0, err
	}

	inThisSmil, err := syncDuration(sync)
	if err != nil {
		return nil, 0, err
	}

	SetMeta(doc, "ncc:totalElapsedTime", FormatHHMMSS(elapsed))
	SetMeta(doc, "ncc:timeInThisSmil", FormatHHMMSS(inThisSmil))
	seq.CreateAttr("dur", FormatSeconds(inThisSmil))
	SetMeta(doc, "ncc:generator", meta.generator)
	SetMeta(doc, "dc:identifier", meta.identifier)

	for _, f := range sync {
		seq.AddChild(f.Element)
	}
	return doc, inThisSmil, nil
}
