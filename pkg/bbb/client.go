package bbb

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds create and join requests.
	DefaultTimeout = 30 * time.Second
	// RecordingsTimeout bounds getRecordings polls.
	RecordingsTimeout = 10 * time.Second

	maxResponseBytes = 16 * 1024 * 1024
	returnCodeOK     = "SUCCESS"
)

// Client performs signed requests against BigBlueButton servers.
//
// Every failure is soft: Get and Post log it and return ok=false. Callers
// degrade to "video call unavailable" instead of failing the request.
type Client struct {
	httpClient *http.Client
}

// NewClient wraps httpClient. A nil client means http.DefaultClient.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

// Get requests rawURL, already signed by BuildURL, and returns the root
// element of a SUCCESS response. A zero timeout means DefaultTimeout.
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) (*xmlquery.Node, bool) {
	return c.do(ctx, http.MethodGet, rawURL, nil, timeout)
}

// Post sends xmlBody to rawURL with content type application/xml.
func (c *Client) Post(ctx context.Context, rawURL, xmlBody string, timeout time.Duration) (*xmlquery.Node, bool) {
	return c.do(ctx, http.MethodPost, rawURL, []byte(xmlBody), timeout)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, timeout time.Duration) (*xmlquery.Node, bool) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := hostOf(rawURL)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		log.Error().Err(err).Str("server_url", host).Msg("could not build BBB request")
		return nil, false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("server_url", host).Msg("could not contact BBB")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("server_url", host).Msg("could not contact BBB")
		return nil, false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error().Err(err).Str("server_url", host).Msg("could not read BBB response")
		return nil, false
	}

	root, err := parseEnvelope(raw)
	if err != nil {
		log.Warn().Err(err).Str("server_url", host).Msg("BBB response contained malformed XML")
		return nil, false
	}
	if root == nil {
		log.Warn().Str("server_url", host).Msg("BBB response had no root element")
		return nil, false
	}

	if code, _ := Text(root, "returncode"); code != returnCodeOK {
		log.Error().
			Str("server_url", host).
			Str("returncode", code).
			Str("message_key", textOrEmpty(root, "messageKey")).
			Msg("BBB request failed")
		return nil, false
	}

	return root, true
}

func parseEnvelope(raw []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, nil
}

// Text returns the trimmed text of the first child element matching path.
// ok is false when the element is missing or empty.
func Text(n *xmlquery.Node, path string) (string, bool) {
	child := xmlquery.FindOne(n, path)
	if child == nil {
		return "", false
	}
	s := strings.TrimSpace(child.InnerText())
	return s, s != ""
}

func textOrEmpty(n *xmlquery.Node, path string) string {
	s, _ := Text(n, path)
	return s
}

// Hostname returns the host of rawURL without port, or "" when it does not
// parse.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
