package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div data-field="project" id="first"><span>Plant <b>7</b></span></div>
<input data-field="project" data-kind="token" id="second" value="tok-1">
<input data-kind="token" id="third" value="tok-2">
</body></html>`

func parse(t *testing.T) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestAttrQueryAll(t *testing.T) {
	doc := parse(t)

	matches := AttrQuery{{Attr: "data-field", Value: "project"}}.All(doc)
	require.Equal(t, 2, matches.Length())
	require.Equal(t, "first", matches.First().AttrOr("id", ""))
}

func TestAttrQueryAllConditionsMustHold(t *testing.T) {
	doc := parse(t)

	query := AttrQuery{
		{Attr: "data-field", Value: "project"},
		{Attr: "data-kind", Value: "token"},
	}
	matches := query.All(doc)
	require.Equal(t, 1, matches.Length())
	require.Equal(t, "second", matches.First().AttrOr("id", ""))
}

func TestAttrQueryFirst(t *testing.T) {
	doc := parse(t)

	el := AttrQuery{{Attr: "data-kind", Value: "token"}}.First(doc)
	require.NotNil(t, el)
	require.Equal(t, "second", el.AttrOr("id", ""))

	require.Nil(t, AttrQuery{{Attr: "data-field", Value: "missing"}}.First(doc))
}

func TestAttrQueryEmptyMatchesNothing(t *testing.T) {
	doc := parse(t)
	require.Nil(t, AttrQuery{}.First(doc))
}

func TestGetText(t *testing.T) {
	doc := parse(t)

	el := AttrQuery{{Attr: "data-field", Value: "project"}}.First(doc)
	require.NotNil(t, el)
	require.Equal(t, "Plant 7", GetText(el.Nodes[0]))
}
