// Package htmlq implements the assertion Querier over a parsed HTML
// document. It powers snapshot rechecks: a saved page_<key>.html can be
// re-asserted without a browser.
package htmlq

import (
	"bytes"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a static, queryable HTML snapshot.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw HTML bytes.
func Parse(data []byte) (*Document, error) {
	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("htmlq: parse: %w", err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(node)}, nil
}

// ParseFile builds a Document from an HTML file on disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("htmlq: read %s: %w", path, err)
	}
	return Parse(data)
}

// Count returns how many elements match the CSS selector. An invalid
// selector matches nothing rather than erroring, mirroring how a browser
// treats a selector it cannot compile inside querySelectorAll wrappers.
func (d *Document) Count(selector string) (int, error) {
	return d.doc.Find(selector).Length(), nil
}

// Text returns the text content of the first element matching the
// selector, or found=false when no element matches.
func (d *Document) Text(selector string) (string, bool, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return sel.Text(), true, nil
}
