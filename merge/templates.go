package merge

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/beevik/etree"
	sprig "github.com/go-task/slim-sprig/v3"

	"dtbm/dtb"
)

// Values holds variables available for title template expansion.
type Values struct {
	// Title of the first source book.
	Title string
	// Titles of all source books in order, consecutive books with the same
	// title are listed once.
	Titles     []string
	Books      int
	Identifier string
	Language   string
	TotalTime  string
}

func bookTitle(doc *etree.Document) string {
	if t := dtb.MetaContent(doc, "dc:title"); len(t) > 0 {
		return t
	}
	if head := dtb.Head(doc); head != nil {
		if t := head.SelectElement("title"); t != nil {
			return strings.TrimSpace(t.Text())
		}
	}
	return ""
}

func buildValues(book *dtb.Book, units []dtb.Unit) Values {
	v := Values{
		Title:      bookTitle(book.Navigation),
		Identifier: dtb.MetaContent(book.Navigation, "dc:identifier"),
		Language:   dtb.MetaContent(book.Navigation, "dc:language"),
		TotalTime:  dtb.FormatHHMMSS(book.Stats.TotalTime),
	}
	seen := make(map[*etree.Document]bool)
	for _, u := range dtb.Flatten(units...) {
		doc := u.NavigationDocument()
		if seen[doc] {
			continue
		}
		seen[doc] = true
		v.Books++
		if t := bookTitle(doc); len(t) > 0 && (len(v.Titles) == 0 || v.Titles[len(v.Titles)-1] != t) {
			v.Titles = append(v.Titles, t)
		}
	}
	return v
}

func expandTitle(field string, values Values) (string, error) {
	tmpl, err := template.New("title").Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse title template: %w", err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand title template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// retitle replaces title of generated documents with expanded template.
func retitle(book *dtb.Book, units []dtb.Unit, field string) (string, error) {
	title, err := expandTitle(field, buildValues(book, units))
	if err != nil {
		return "", err
	}
	if len(title) == 0 {
		return "", nil
	}
	for _, doc := range []*etree.Document{book.Navigation, book.Content} {
		head := dtb.Head(doc)
		if head == nil {
			continue
		}
		t := head.SelectElement("title")
		if t == nil {
			t = etree.NewElement("title")
			head.InsertChildAt(0, t)
		}
		t.SetText(title)
	}
	if len(dtb.MetaContent(book.Navigation, "dc:title")) > 0 {
		dtb.SetMeta(book.Navigation, "dc:title", title)
	}
	return title, nil
}
