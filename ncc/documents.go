package ncc

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"dtbm/dtb"
)

// locate finds file on disk. DTBs produced on case insensitive file systems
// often reference files with different name case, so when exact name does
// not exist a case insensitive match in the same directory is accepted.
func locate(u *url.URL) (string, error) {
	name, err := dtb.LocalPath(u)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("unable to locate %s: %w", name, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), base) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("unable to locate %s: %w", name, os.ErrNotExist)
}

// readDocument parses XHTML or SMIL file. Old DTBs are frequently not quite
// well formed and use HTML named entities and legacy encodings.
func readDocument(name string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        xml.HTMLEntity,
		Permissive:    true,
	}
	if err := doc.ReadFromFile(name); err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("unable to read %s: no root element", name)
	}
	stripNamespaces(doc.Root())
	return doc, nil
}

// stripNamespaces drops default namespace prefixes from tags so elements
// could be selected by local name. Namespace declarations stay in place.
func stripNamespaces(e *etree.Element) {
	if e.Space != "" && e.Space != "xml" {
		e.Space = ""
	}
	for _, c := range e.ChildElements() {
		stripNamespaces(c)
	}
}

// documents caches parsed source documents by location.
type documents map[string]*etree.Document

func (d documents) get(u *url.URL) (*etree.Document, error) {
	key := strings.ToLower(withoutFragment(u).String())
	if doc, ok := d[key]; ok {
		return doc, nil
	}
	name, err := locate(u)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(name)
	if err != nil {
		return nil, err
	}
	d[key] = doc
	return doc, nil
}

func withoutFragment(u *url.URL) *url.URL {
	c := *u
	c.Fragment, c.RawFragment, c.RawQuery = "", "", ""
	return &c
}

// indexIDs maps every id in the document to its element.
func indexIDs(doc *etree.Document) map[string]*etree.Element {
	ids := make(map[string]*etree.Element)
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if id := e.SelectAttrValue("id", ""); id != "" {
			if _, ok := ids[id]; !ok {
				ids[id] = e
			}
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(doc.Root())
	return ids
}
