package goodsave

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"formrunner/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type recordedPost struct {
	Query  url.Values
	Form   url.Values
	Cookie string
}

// formServer serves the fixture page at /goodsave and records submissions
// arriving at the page's declared action.
type formServer struct {
	*httptest.Server

	mu    sync.Mutex
	page  string
	posts []recordedPost
}

func newFormServer(t *testing.T, page string) *formServer {
	s := &formServer{page: page}

	mux := http.NewServeMux()
	mux.HandleFunc("/goodsave", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		fmt.Fprint(w, s.page)
	})
	mux.HandleFunc("/forms/goodsave/submit", func(w http.ResponseWriter, r *http.Request) {
		s.recordPost(t, r)
		fmt.Fprint(w, "staged")
	})
	mux.HandleFunc("/fallback/submit", func(w http.ResponseWriter, r *http.Request) {
		s.recordPost(t, r)
		fmt.Fprint(w, "staged")
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *formServer) recordPost(t *testing.T, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		t.Error(err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, recordedPost{
		Query:  r.URL.Query(),
		Form:   r.PostForm,
		Cookie: r.Header.Get("Cookie"),
	})
}

func (s *formServer) recordedPosts() []recordedPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts
}

func newTestPipeline(t *testing.T, srv *formServer) Pipeline {
	client := newTestClient(t, srv.URL+"/goodsave?src=mail")
	return Pipeline{
		Client:      client,
		Spec:        testSpec(),
		Base:        testBase(),
		PayloadFile: filepath.Join(t.TempDir(), "postdata.json"),
	}
}

func TestPipelineRun(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/goodsave")
	defer cleanup()

	srv := newFormServer(t, formPage)
	pipeline := newTestPipeline(t, srv)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Posted)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "/forms/goodsave/submit", result.Target.Path)

	posts := srv.recordedPosts()
	require.Len(t, posts, 1)
	post := posts[0]

	require.Equal(t, url.Values{
		"fr_lang":       {"en"},
		"qs_actionMode": {"42"},
		"qs_template":   {"stage"},
		"rq_xhr":        {"31"},
	}, post.Query)

	require.Equal(t, "PRJ-7", post.Form.Get("fr_Project"))
	require.Equal(t, "Near Miss", post.Form.Get("fr_GoodSaveType"))
	require.NotEmpty(t, post.Form.Get("fr_formData"))

	// the session cookie scraped off the page rides along on the submission
	require.Contains(t, post.Cookie, "fr_session=3f9c2d")

	saved, err := ReadPayloadFile(pipeline.PayloadFile)
	require.NoError(t, err)
	require.Equal(t, result.Payload, saved)
}

func TestPipelineTestMode(t *testing.T) {
	srv := newFormServer(t, formPage)
	pipeline := newTestPipeline(t, srv)
	pipeline.TestMode = true

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.False(t, result.Posted)
	require.Empty(t, srv.recordedPosts())

	// the payload side file is written even when nothing is submitted
	_, err = ReadPayloadFile(pipeline.PayloadFile)
	require.NoError(t, err)
}

func TestPipelineNoCookieScript(t *testing.T) {
	page := strings.Replace(formPage, "Helper.setCookie", "Helper.noop", -1)
	srv := newFormServer(t, page)
	pipeline := newTestPipeline(t, srv)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Posted)

	posts := srv.recordedPosts()
	require.Len(t, posts, 1)
	require.NotContains(t, posts[0].Cookie, "fr_session")
}

func TestPipelineFallbackPostUrl(t *testing.T) {
	// without the header container the page never reveals its action
	page := strings.Replace(formPage, ` data-role="app-main"`, "", 1)
	srv := newFormServer(t, page)
	pipeline := newTestPipeline(t, srv)
	pipeline.FallbackPostUrl = srv.URL + "/fallback/submit"

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Posted)
	require.Equal(t, "/fallback/submit", result.Target.Path)

	posts := srv.recordedPosts()
	require.Len(t, posts, 1)
	// the original page query and the staged-submission markers survive
	require.Equal(t, "mail", posts[0].Query.Get("src"))
	require.Equal(t, "42", posts[0].Query.Get("qs_actionMode"))
}

func TestPipelineGetStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL+"/goodsave")
	pipeline := Pipeline{Client: client, Spec: testSpec(), Base: testBase()}

	_, err := pipeline.Run(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestPipelineTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := newTestClient(t, base+"/goodsave")
	pipeline := Pipeline{Client: client, Spec: testSpec(), Base: testBase()}

	_, err := pipeline.Run(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.True(t, errors.Is(err, transportErr.Err))
}
