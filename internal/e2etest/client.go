package e2etest

import (
	"context"
	"encoding/json"
	"github.com/PuerkitoBio/goquery"
	"github.com/medcircle/medresident/internal/errors"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

type Client struct {
	client *http.Client
	url    string
}

// NewClient creates an HTTP client with a cookie jar so that the learner session survives between requests.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client: &http.Client{Jar: jar}, //nolint:exhaustruct // defaults
		url:    url,
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request with context")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// GetDoc fetches a URL and returns a goquery document.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	var (
		err  error
		resp *http.Response
	)
	if resp, err = c.Get(ctx, urlPath); err != nil {
		return nil, errors.Wrap(err, "client get")
	}
	return readDoc(resp)
}

// GetJSON fetches a URL and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, urlPath string, v any) error {
	var (
		err  error
		resp *http.Response
	)
	if resp, err = c.Get(ctx, urlPath); err != nil {
		return errors.Wrap(err, "client get")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}
	if err = json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode json")
	}
	return nil
}

// PostForm posts values to urlPath and returns the response after following redirects.
func (c *Client) PostForm(ctx context.Context, urlPath string, values neturl.Values) (*http.Response, error) {
	return c.postForm(ctx, urlPath, values, nil)
}

// PostHTMX posts values to urlPath the way htmx does and returns the fragment of the response.
func (c *Client) PostHTMX(ctx context.Context, urlPath string, values neturl.Values) (*goquery.Document, error) {
	resp, err := c.postForm(ctx, urlPath, values, http.Header{"Hx-Request": []string{"true"}})
	if err != nil {
		return nil, err
	}
	return readDoc(resp)
}

func (c *Client) postForm(
	ctx context.Context,
	urlPath string,
	values neturl.Values,
	header http.Header,
) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = c.newRequestWithContext(ctx, http.MethodPost, urlPath,
		strings.NewReader(values.Encode())); err != nil {
		return nil, errors.Wrap(err, "new request with context")
	}
	for key, vals := range header {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// SubmitForm submits the form of doc matching formSelector with the values of its inputs, including the CSRF token,
// and returns the response document.
func (c *Client) SubmitForm(
	ctx context.Context,
	doc *goquery.Document,
	formSelector string,
) (*goquery.Document, error) {
	form := doc.Find(formSelector)
	if form.Length() != 1 {
		return nil, errors.New("form not found", slog.String("selector", formSelector),
			slog.Int("matches", form.Length()))
	}
	action, ok := form.Attr("action")
	if !ok {
		return nil, errors.New("form has no action", slog.String("selector", formSelector))
	}
	formData := FormValues(form)
	if formData.Get("csrf_token") == "" {
		return nil, errors.New("csrf_token not found in form", slog.String("selector", formSelector))
	}

	var (
		resp *http.Response
		err  error
	)
	if resp, err = c.PostForm(ctx, action, formData); err != nil {
		return nil, errors.Wrap(err, "post form")
	}
	return readDoc(resp)
}

// FormValues collects the named inputs of form.
func FormValues(form *goquery.Selection) neturl.Values {
	values := neturl.Values{}
	form.Find("input[name]").Each(func(_ int, input *goquery.Selection) {
		name, _ := input.Attr("name")
		value, _ := input.Attr("value")
		values.Add(name, value)
	})
	return values
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if req, err = http.NewRequestWithContext(ctx, method, c.url+urlPath, body); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req, nil
}

func readDoc(resp *http.Response) (*goquery.Document, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	if http.StatusOK != resp.StatusCode {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return doc, nil
}
