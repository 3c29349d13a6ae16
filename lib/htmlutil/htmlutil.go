package htmlutil

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// AttrCond is one attribute-name/expected-value condition.
type AttrCond struct {
	Attr  string `json:"attr"`
	Value string `json:"value"`
}

// AttrQuery locates elements by an ordered list of attribute conditions,
// all of which must hold, regardless of tag name.
type AttrQuery []AttrCond

func (q AttrQuery) matches(node *html.Node) bool {
	if len(q) == 0 {
		return false
	}
	for _, cond := range q {
		found := false
		for _, attr := range node.Attr {
			if attr.Key == cond.Attr && attr.Val == cond.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// All returns every matching element in document order.
func (q AttrQuery) All(doc *goquery.Document) *goquery.Selection {
	return doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return q.matches(s.Nodes[0])
	})
}

// First returns the first matching element, or nil when there is none.
func (q AttrQuery) First(doc *goquery.Document) *goquery.Selection {
	all := q.All(doc)
	if all.Length() == 0 {
		return nil
	}
	return all.First()
}
