package goodsave

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"formrunner/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

type ClientOptions struct {
	// full form URL, including any static query parameters
	Url        string
	HeaderPool []HeaderSet
	// defaults to DefaultRecentHeadersFile
	RecentHeadersFile string
	// total request timeout, defaults to 30s
	Timeout time.Duration
}

// Client owns the HTTP session for one pipeline run: cookie jar, selected
// header set, and the connection state all live and die with it.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Headers HeaderSet
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.Url)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.Scheme + "://" + baseUrl.Host)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	if len(opts.HeaderPool) > 0 {
		headers, err := SelectHeaders(NewRecencyStore(opts.RecentHeadersFile), opts.HeaderPool)
		if err != nil {
			return nil, err
		}
		client.SetHeaders(headers)
		c.Headers = headers
	}

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return c, nil
}

func (c *Client) Get(ctx context.Context, t Target) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(t.Query).
		Get(t.Path)
	if err != nil {
		return nil, &TransportError{URL: t.String(), Err: err}
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) PostForm(ctx context.Context, t Target, form url.Values) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(t.Query).
		SetFormDataFromValues(form).
		Post(t.Path)
	if err != nil {
		return nil, &TransportError{URL: t.String(), Err: err}
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetCookie installs a cookie scoped to the client's host, path "/".
func (c *Client) SetCookie(name, value string) {
	c.Http.SetCookie(&http.Cookie{
		Name:   name,
		Value:  value,
		Domain: c.BaseUrl.Hostname(),
		Path:   "/",
	})
}

func checkStatus(res *resty.Response) error {
	if res.IsSuccess() {
		return nil
	}
	return &StatusError{StatusCode: res.StatusCode(), URL: res.Request.URL}
}
