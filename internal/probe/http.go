package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// securityHeaderNames is the fixed set of headers whose presence forms the
// header-hygiene signal. This count is informational and is not part of the
// TLS certificate grade.
var securityHeaderNames = []string{
	"Strict-Transport-Security",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"X-XSS-Protection",
	"Content-Security-Policy",
	"Referrer-Policy",
}

// SecurityHeaders reports which well-known security headers a response carried.
type SecurityHeaders struct {
	Present      map[string]bool   `json:"present"`
	Values       map[string]string `json:"values,omitempty"`
	PresentCount int               `json:"present_count"`
	MissingCount int               `json:"missing_count"`
}

// HTTPResult is the outcome of an HTTP(S) liveness check.
type HTTPResult struct {
	Result
	Host            string          `json:"host"`
	Port            uint16          `json:"port"`
	URL             string          `json:"url"`
	Protocol        string          `json:"protocol"`
	StatusCode      int             `json:"status_code,omitempty"`
	ReasonPhrase    string          `json:"reason_phrase,omitempty"`
	Headers         http.Header     `json:"headers,omitempty"`
	Server          string          `json:"server,omitempty"`
	ContentType     string          `json:"content_type,omitempty"`
	ContentLength   string          `json:"content_length,omitempty"`
	IsRedirect      bool            `json:"is_redirect"`
	RedirectURL     string          `json:"redirect_url,omitempty"`
	SecurityHeaders SecurityHeaders `json:"security_headers"`
	// BodySnippet is only populated by DeepCheck.
	BodySnippet string `json:"body_snippet,omitempty"`
}

// HTTPProber issues HEAD requests against web ports.
//
// The protocol is inferred as HTTPS for ports 443 and 8443 and HTTP otherwise.
// That is a heuristic, not a guarantee: a plaintext service on 8443 will show
// up as a failed probe rather than being retried over HTTP.
//
// Certificate validation is intentionally disabled here: this probe answers
// "is something speaking HTTP there", while certificate trust is graded
// separately by the TLS prober.
type HTTPProber struct {
	Config
}

// Check performs a HEAD request against host:port.
func (h *HTTPProber) Check(ctx context.Context, host string, port uint16) *HTTPResult {
	return h.request(ctx, http.MethodHead, host, port, 0)
}

// DeepCheck performs a GET and captures a body snippet of up to snippetLimit
// bytes. It exists for servers that reject HEAD and for manual inspection; the
// default scan flow does not use it.
func (h *HTTPProber) DeepCheck(ctx context.Context, host string, port uint16, snippetLimit int) *HTTPResult {
	if snippetLimit <= 0 {
		snippetLimit = 1024
	}
	return h.request(ctx, http.MethodGet, host, port, snippetLimit)
}

func (h *HTTPProber) request(ctx context.Context, method, host string, port uint16, snippetLimit int) *HTTPResult {
	protocol := schemeForPort(port)
	url := fmt.Sprintf("%s://%s/", protocol, net.JoinHostPort(host, strconv.Itoa(int(port))))

	result := &HTTPResult{
		Host:     host,
		Port:     port,
		URL:      url,
		Protocol: protocol,
	}

	client := &http.Client{
		Timeout: h.timeout(),
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, // liveness only, see type comment
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	defer client.CloseIdleConnections()

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		result.Result = fail(KindUnexpected, 0, "create request: %v", err)
		return result
	}
	req.Header.Set("User-Agent", h.userAgent())

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		kind := KindUnexpected
		if reqCtx.Err() == context.DeadlineExceeded {
			kind = KindConnectionTimeout
			result.Result = fail(kind, elapsed, "HTTP timeout after %s", h.timeout())
			return result
		}
		result.Result = fail(kind, elapsed, "request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.Result = ok(elapsed)
	result.StatusCode = resp.StatusCode
	result.ReasonPhrase = reasonPhrase(resp)
	result.Headers = resp.Header
	result.Server = resp.Header.Get("Server")
	result.ContentType = resp.Header.Get("Content-Type")
	result.ContentLength = resp.Header.Get("Content-Length")
	result.IsRedirect = resp.StatusCode >= 300 && resp.StatusCode < 400
	if result.IsRedirect {
		result.RedirectURL = resp.Header.Get("Location")
	}
	result.SecurityHeaders = analyzeSecurityHeaders(resp.Header)

	if snippetLimit > 0 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, int64(snippetLimit)))
		result.BodySnippet = string(snippet)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return result
}

func analyzeSecurityHeaders(headers http.Header) SecurityHeaders {
	sec := SecurityHeaders{
		Present: make(map[string]bool, len(securityHeaderNames)),
		Values:  make(map[string]string),
	}
	for _, name := range securityHeaderNames {
		value := headers.Get(name)
		present := value != ""
		sec.Present[name] = present
		if present {
			sec.Values[name] = value
			sec.PresentCount++
		}
	}
	sec.MissingCount = len(securityHeaderNames) - sec.PresentCount
	return sec
}

func schemeForPort(port uint16) string {
	if port == 443 || port == 8443 {
		return "https"
	}
	return "http"
}

func reasonPhrase(resp *http.Response) string {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = resp.Status
	}
	return text
}
