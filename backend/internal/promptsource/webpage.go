// Package promptsource turns external documents into pipeline prompts.
package promptsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sysdesign-assistant/backend/internal/constants"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

// noiseSelectors are removed before text extraction
var noiseSelectors = "script, style, noscript, iframe, svg, nav, footer, header nav"

// ErrNonPublicAddress is returned when a fetch would connect to a loopback,
// private, link-local or unspecified address
var ErrNonPublicAddress = errors.New("address is not publicly routable")

// cgnat is the shared address space of RFC 6598
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// Fetcher downloads requirement pages
type Fetcher struct {
	client   *http.Client
	maxChars int
}

// NewFetcher creates a fetcher over client. A nil client gets a 30s timeout
// and refuses to dial non-public addresses, redirects included. A caller
// supplied client is used as is.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout:   30 * time.Second,
			Transport: publicOnlyTransport(),
		}
	}
	return &Fetcher{client: client, maxChars: constants.MaxPromptChars}
}

// FetchWebpage fetches url with a default fetcher
func FetchWebpage(ctx context.Context, url string) (string, error) {
	return NewFetcher(nil).FetchWebpage(ctx, url)
}

func publicOnlyTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   rejectNonPublic,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// a proxy would be dialed instead of the target and hide it from the check
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return transport
}

// rejectNonPublic runs after name resolution, so address is always ip:port
func rejectNonPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrNonPublicAddress, host)
	}
	return nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		cgnat.Contains(ip))
}

// normalizeURL defaults a bare host to https and accepts only http(s)
func normalizeURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.NewConfigValidationFailed("url", err.Error())
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", apperrors.NewConfigValidationFailed("url", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Hostname() == "" {
		return "", apperrors.NewConfigValidationFailed("url", "missing host")
	}
	return u.String(), nil
}

// FetchWebpage returns the page title and readable text of rawURL as one prompt
func (f *Fetcher) FetchWebpage(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", apperrors.NewConfigValidationFailed("url", "must not be empty")
	}
	url, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.NewConfigValidationFailed("url", err.Error())
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SysDesignBot/1.0)")

	resp, err := f.client.Do(req)
	if errors.Is(err, ErrNonPublicAddress) {
		return "", apperrors.NewConfigValidationFailed("url", err.Error())
	}
	if err != nil {
		return "", apperrors.NewRemoteRequestFailed("fetch_webpage", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewRemoteRequestFailed("fetch_webpage", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", url, err)
	}

	text := extractText(doc)
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", url)
	}
	return truncate(text, f.maxChars), nil
}

// extractText joins the title and the body's block-level text
func extractText(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	var parts []string
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	root.Find("h1, h2, h3, h4, p, li, pre, td").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are picked up on their own
		if s.Find("p, li").Length() > 0 {
			return
		}
		if line := collapse(s.Text()); line != "" {
			parts = append(parts, line)
		}
	})

	if len(parts) <= 1 {
		if body := collapse(root.Text()); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars])
}
