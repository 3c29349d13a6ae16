package goodsave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"formrunner/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// FieldSpec maps a logical field name to the attribute query locating its
// control in the form DOM. Read-only after load.
type FieldSpec map[string]htmlutil.AttrQuery

// ResponseSet is one canned set of answers standing in for values a real
// user would have entered. Chosen once per run, read-only afterwards.
type ResponseSet struct {
	Values   map[string]string   `json:"values"`
	Repeated map[string][]string `json:"repeated"`
}

// payload key carrying the serialized form-state snapshot
const formDataKey = "fr_formData"

// the form GUID sits in the first class token behind a fixed-length prefix
const formGuidPrefixLen = 5

// fields resolved by the composite-default policy
var compositeFields = map[string]bool{
	"Project":                  true,
	"Location":                 true,
	"Good Save Type":           true,
	"Good Save Category":       true,
	"Good Save Classification": true,
	"Risk Category":            true,
	"jquery":                   true,
}

// security-token and upload-identifier fields stay in the wire payload
// but never enter the form-state snapshot
var snapshotExcluded = map[string]bool{
	"CSRFToken":      true,
	"fr_fupUniqueId": true,
}

type formScrape struct {
	doc    *goquery.Document
	spec   FieldSpec
	base   ResponseSet
	target *Target

	payload url.Values
	// collected values destined for the snapshot, keyed by wire name
	fields map[string]any
	// the page's own serialized state, seeds the snapshot before
	// collected fields override it
	pageState map[string]any

	// staged-submission markers are applied after all fields resolve so
	// an action rewrite cannot clobber them
	stagedAction    string
	hasStagedAction bool
}

// ScrapeForm resolves every field of spec against doc and produces the
// submission payload. target is rewritten in place when the form reveals
// its real submission action. Lookup misses skip the field; structural
// violations abort the scrape with a *StructureError.
func ScrapeForm(ctx context.Context, doc *goquery.Document, spec FieldSpec, base ResponseSet, target *Target) (url.Values, error) {
	ctx, span := tracer.Start(ctx, "ScrapeForm")
	defer span.End()

	s := &formScrape{
		doc:     doc,
		spec:    spec,
		base:    base,
		target:  target,
		payload: url.Values{},
		fields:  map[string]any{},
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		err := s.scrapeField(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scrape aborted")
			return nil, err
		}
	}

	if s.hasStagedAction {
		s.target.stageQuery(s.stagedAction)
	}

	snapshot := map[string]any{}
	maps.Copy(snapshot, s.pageState)
	maps.Copy(snapshot, s.fields)
	encoded, err := json.Marshal([]map[string]any{snapshot})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize form state")
		return nil, err
	}
	s.payload.Set(formDataKey, string(encoded))

	return s.payload, nil
}

func (s *formScrape) scrapeField(ctx context.Context, key string) error {
	el := s.spec[key].First(s.doc)
	if el == nil {
		slog.WarnContext(ctx, "no matching element for field", "field", key)
		return nil
	}

	switch {
	case compositeFields[key]:
		return s.scrapeComposite(key, el)
	case key == "upTextareaControl":
		return s.scrapeRepeated(key)
	case key == "fr_ActionId":
		return s.scrapeActionId(key, el)
	case key == "fr_formState":
		return s.scrapeFormState(key, el)
	case key == "Submitted By":
		return s.scrapeSubmittedBy(key, el)
	case key == "Header_Container_AppMain":
		return s.scrapeHeaderContainer(key, el)
	default:
		return s.scrapeDefault(key, el)
	}
}

func (s *formScrape) put(name string, value string) {
	s.payload.Set(name, value)
	s.fields[name] = value
}

func wireName(key string, el *goquery.Selection) (string, error) {
	name, ok := el.Attr("name")
	if !ok {
		return "", &StructureError{Field: key, Reason: "control has no name attribute"}
	}
	return name, nil
}

// composite-default fields take their value from the response set, except
// Project (nested control) and jquery (adjacent control). Whatever the
// source, the parent's next sibling piggybacks an extra hidden input when
// it carries a name.
func (s *formScrape) scrapeComposite(key string, el *goquery.Selection) error {
	name, err := wireName(key, el)
	if err != nil {
		return err
	}

	var value string
	switch key {
	case "Project":
		child := el.Children().First()
		if child.Length() == 0 {
			return &StructureError{Field: key, Reason: "expected a nested control"}
		}
		value = child.AttrOr("value", "")
	case "jquery":
		sibling := el.Next()
		if sibling.Length() == 0 {
			return &StructureError{Field: key, Reason: "expected an adjacent control"}
		}
		value = sibling.AttrOr("value", "")
	default:
		value = s.base.Values[key]
	}
	s.put(name, value)

	piggyback := el.Parent().Next()
	if piggyback.Length() > 0 {
		if pname, ok := piggyback.Attr("name"); ok {
			s.put(pname, piggyback.AttrOr("value", ""))
		}
	}
	return nil
}

// every matched control zips positionally against the response set's
// repeated sequence
func (s *formScrape) scrapeRepeated(key string) error {
	seq := s.base.Repeated[key]

	var failure error
	s.spec[key].All(s.doc).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= len(seq) {
			failure = &StructureError{
				Field:  key,
				Reason: fmt.Sprintf("control %d has no response value", i),
			}
			return false
		}
		name, err := wireName(key, el)
		if err != nil {
			failure = err
			return false
		}
		s.put(name, seq[i])
		return true
	})
	return failure
}

func (s *formScrape) scrapeActionId(key string, el *goquery.Selection) error {
	name, err := wireName(key, el)
	if err != nil {
		return err
	}
	value := el.AttrOr("value", "")
	s.stagedAction = value
	s.hasStagedAction = true
	s.put(name, value)
	return nil
}

// the literal value goes on the wire verbatim, and its embedded JSON seeds
// the snapshot so collected fields override the page's own state
func (s *formScrape) scrapeFormState(key string, el *goquery.Selection) error {
	name, err := wireName(key, el)
	if err != nil {
		return err
	}
	value, ok := el.Attr("value")
	if !ok {
		return &StructureError{Field: key, Reason: "control has no value attribute"}
	}
	s.payload.Set(name, value)

	var state map[string]any
	err = json.Unmarshal([]byte(value), &state)
	if err != nil {
		return &StructureError{Field: key, Reason: "malformed embedded state: " + err.Error()}
	}
	s.pageState = state
	return nil
}

func (s *formScrape) scrapeSubmittedBy(key string, el *goquery.Selection) error {
	name, err := wireName(key, el)
	if err != nil {
		return err
	}
	value := s.base.Values[key]
	if value == "" {
		value = "Default User"
	}
	s.put(name, value)
	return nil
}

// the header container produces no payload value; it carries the form's
// identity and its declared action, which becomes the real request target
func (s *formScrape) scrapeHeaderContainer(key string, el *goquery.Selection) error {
	class, ok := el.Attr("class")
	if !ok {
		return &StructureError{Field: key, Reason: "container has no class attribute"}
	}
	tokens := strings.Fields(class)
	if len(tokens) == 0 || len(tokens[0]) < formGuidPrefixLen {
		return &StructureError{Field: key, Reason: "class attribute does not carry a form guid"}
	}
	s.fields["fr_formGuid"] = tokens[0][formGuidPrefixLen:]
	s.fields["fr_formName"] = el.AttrOr("name", "")
	s.fields["fr_uniqueId"] = el.AttrOr("id", "")

	action, ok := el.Attr("action")
	if !ok {
		return &StructureError{Field: key, Reason: "container has no action attribute"}
	}
	err := s.target.setFromAction(action)
	if err != nil {
		return &StructureError{Field: key, Reason: "unparseable action url: " + err.Error()}
	}
	return nil
}

func (s *formScrape) scrapeDefault(key string, el *goquery.Selection) error {
	name, err := wireName(key, el)
	if err != nil {
		return err
	}
	value := el.AttrOr("value", "")
	s.payload.Set(name, value)
	if !snapshotExcluded[key] {
		s.fields[name] = value
	}
	return nil
}
