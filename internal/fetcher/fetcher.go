// Package fetcher issues the HTTP requests against the manuals site: page
// GETs returning HTML text and streaming GETs for the PDF files.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"motorcycle-manuals/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("motorcycle.internal.fetcher")

// ErrTransport wraps every failure to obtain a response at all: timeouts,
// redirect loops, refused connections. It is never retried.
var ErrTransport = errors.New("transport error")

const DefaultBaseUrl = "https://carlsalter.com/"

type Options struct {
	BaseUrl string
	// zero means 30 seconds
	Timeout time.Duration
	// requests per second, zero disables limiting
	RateLimit float64
	// zero means 10
	MaxRedirects     int
	CloudflareBypass bool
	// when set every HTTP message is dumped into it
	Output restyutil.InstrumentOutput
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

func New(opts Options) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 10
	}

	httpClient := resty.New()
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	httpClient.SetTimeout(opts.Timeout)

	if opts.RateLimit > 0 {
		// burst of 1 keeps requests evenly spaced
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	restyutil.InstrumentClient(httpClient, tracer, opts.Output)

	return &Client{
		BaseUrl: baseUrl,
		Http:    httpClient,
	}, nil
}

// Resolve turns an href found on a page into an absolute url against the
// base url.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	return c.BaseUrl.ResolveReference(parsed).String(), nil
}

// Get fetches a page and returns its body as text. The status code is not
// checked, an error page is still a page.
func (c *Client) Get(ctx context.Context, ref string) (string, error) {
	link, err := c.Resolve(ref)
	if err != nil {
		return "", err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return "", fmt.Errorf("%w: GET %s: %w", ErrTransport, link, err)
	}
	if !res.IsSuccess() {
		slog.WarnContext(ctx, "page returned unexpected status", "url", link, "status", res.StatusCode())
	}
	return res.String(), nil
}

// Stream issues a GET whose body is left unread, the caller must close it.
func (c *Client) Stream(ctx context.Context, link string) (io.ReadCloser, int, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		if res != nil && res.RawBody() != nil {
			res.RawBody().Close()
		}
		return nil, 0, fmt.Errorf("%w: GET %s: %w", ErrTransport, link, err)
	}
	// resty runs no response middleware on unparsed responses
	trace.SpanFromContext(res.Request.Context()).End()
	return res.RawBody(), res.StatusCode(), nil
}
