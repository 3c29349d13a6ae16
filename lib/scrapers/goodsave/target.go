package goodsave

import "net/url"

// Target is the mutable path + query the next request goes to. The form
// scraper rewrites it once the page reveals the real submission action.
type Target struct {
	Path  string
	Query url.Values

	actionDiscovered bool
}

func TargetFromUrl(u *url.URL) Target {
	return Target{Path: u.Path, Query: u.Query()}
}

func (t Target) String() string {
	u := url.URL{Path: t.Path, RawQuery: t.Query.Encode()}
	return u.String()
}

// setFromAction replaces the whole target with the form's declared action.
func (t *Target) setFromAction(action string) error {
	u, err := url.Parse(action)
	if err != nil {
		return err
	}
	t.Path = u.Path
	t.Query = u.Query()
	t.actionDiscovered = true
	return nil
}

// ActionDiscovered reports whether the form revealed its real action.
func (t Target) ActionDiscovered() bool { return t.actionDiscovered }

// applyFallback points the target at the configured post URL, keeping any
// query parameters accumulated during the scrape.
func (t *Target) applyFallback(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	t.Path = u.Path
	for k, vs := range u.Query() {
		if !t.Query.Has(k) {
			t.Query[k] = vs
		}
	}
	return nil
}

// stageQuery appends the markers routing the next request to the
// staged submission handler.
func (t *Target) stageQuery(actionId string) {
	t.Query.Set("qs_actionMode", actionId)
	t.Query.Set("qs_template", "stage")
	t.Query.Set("rq_xhr", "31")
}
