package debug

import (
	"strings"

	"github.com/beevik/etree"

	"dtbm/dtb"
)

// Outline renders unit tree: headings with their sources, number of elements
// and audio segments.
func Outline(units ...dtb.Unit) string {
	tw := NewTreeWriter()
	index := 0
	var dump func(depth int, units []dtb.Unit)
	dump = func(depth int, units []dtb.Unit) {
		for _, u := range units {
			tw.Line(depth, "Unit[%d] depth=%d", index, u.Depth())
			index++
			tw.TextBlock(depth+1, "Heading", headingText(u))
			if src := u.SyncSource(); src != nil {
				tw.Line(depth+1, "Timing: %s", src)
			}
			tw.Line(depth+1, "Elements: nav=%d text=%d sync=%d", len(u.NavigationElements()), len(u.TextElements()), len(u.SyncElements()))
			for i, s := range u.AudioSegments() {
				tw.Line(depth+1, "Audio[%d] %s [%s - %s] of %s", i, s.File,
					dtb.FormatSeconds(s.ClipBegin), dtb.FormatSeconds(s.ClipEnd), dtb.FormatSeconds(s.FileDuration))
			}
			for i, m := range u.MediaEntries() {
				tw.Line(depth+1, "Media[%d] %s", i, m.Name)
			}
			dump(depth+1, u.Children())
		}
	}
	dump(0, units)
	return tw.String()
}

func headingText(u dtb.Unit) string {
	for _, f := range u.NavigationElements() {
		if dtb.IsHeading(f.Element) {
			return collectText(f.Element)
		}
	}
	return ""
}

func collectText(e *etree.Element) string {
	var sb strings.Builder
	for _, t := range e.Child {
		switch v := t.(type) {
		case *etree.CharData:
			sb.WriteString(v.Data)
		case *etree.Element:
			sb.WriteString(collectText(v))
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
