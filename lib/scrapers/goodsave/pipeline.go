package goodsave

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

const DefaultPayloadFile = "postdata.json"

// Pipeline is one run of the fetch -> cookie -> scrape -> submit sequence.
// It exclusively owns its Client (and therefore the session and cookie jar)
// for the duration of the run.
type Pipeline struct {
	Client   *Client
	Spec     FieldSpec
	Base     ResponseSet
	TestMode bool
	// POST destination used when the page never reveals its form action
	FallbackPostUrl string
	// "" disables the side file
	PayloadFile string
}

type Result struct {
	Posted     bool
	StatusCode int
	Target     Target
	Payload    url.Values
}

// PickResponseSet chooses one canned response set for the run.
func PickResponseSet(sets []ResponseSet) (ResponseSet, error) {
	if len(sets) == 0 {
		slog.Warn("no response sets configured, using empty responses")
		return ResponseSet{}, nil
	}
	idx, err := random.IntRange(0, len(sets))
	if err != nil {
		return ResponseSet{}, err
	}
	return sets[idx], nil
}

// Run drives the pipeline to completion. The first unrecoverable error
// terminates the run, there is no retry.
func (p Pipeline) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()

	target := TargetFromUrl(p.Client.BaseUrl)

	res, err := p.Client.Get(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch form page")
		return Result{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse form page html")
		return Result{}, err
	}

	p.Client.InstallSessionCookie(ctx, doc)

	payload, err := ScrapeForm(ctx, doc, p.Spec, p.Base, &target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scrape form")
		return Result{}, err
	}

	if p.PayloadFile != "" {
		err = WritePayloadFile(p.PayloadFile, payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to persist payload")
			return Result{}, err
		}
		slog.InfoContext(ctx, "scraped payload saved", "path", p.PayloadFile)
	}

	if !target.ActionDiscovered() && p.FallbackPostUrl != "" {
		err = target.applyFallback(p.FallbackPostUrl)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad fallback post url")
			return Result{}, err
		}
		slog.InfoContext(ctx, "form action not discovered, using configured post url", "target", target.String())
	}

	result := Result{
		StatusCode: res.StatusCode(),
		Target:     target,
		Payload:    payload,
	}

	if p.TestMode {
		slog.InfoContext(ctx, "test mode enabled, skipping submission")
		return result, nil
	}

	postRes, err := p.Client.PostForm(ctx, target, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit form")
		return Result{}, err
	}
	result.Posted = true
	result.StatusCode = postRes.StatusCode()
	slog.InfoContext(ctx, "form submitted", "status", postRes.StatusCode(), "target", target.String())
	return result, nil
}

// WritePayloadFile persists the submission payload for later inspection.
func WritePayloadFile(path string, payload url.Values) error {
	encoded, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0644)
}

// ReadPayloadFile reloads a persisted submission payload.
func ReadPayloadFile(path string) (url.Values, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload url.Values
	err = json.Unmarshal(contents, &payload)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
