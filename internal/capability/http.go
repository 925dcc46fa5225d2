package capability

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boruna/internal/value"
)

// HTTPHandler implements NetFetch with the SSRF protections of
// spec.md §6. The underlying transport is net/http: the spec leaves
// the networking library unspecified (§1, out of scope) and no pack
// example settles on a third-party HTTP client for outbound fetches,
// so stdlib is the grounded, non-speculative choice (see DESIGN.md).
type HTTPHandler struct {
	Policy *NetPolicy
	Client *http.Client
}

func NewHTTPHandler(policy *NetPolicy) *HTTPHandler {
	timeout := 10 * time.Second
	if policy != nil && policy.TimeoutMs > 0 {
		timeout = time.Duration(policy.TimeoutMs) * time.Millisecond
	}
	client := &http.Client{Timeout: timeout}
	if policy != nil && !policy.AllowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &HTTPHandler{Policy: policy, Client: client}
}

func (h *HTTPHandler) Handle(ctx context.Context, cap Capability, args []value.Value) (value.Value, error) {
	if cap.Kind != KindNetFetch {
		return nil, fmt.Errorf("http handler: unsupported capability %s", cap.Name)
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("net.fetch: missing url argument")
	}
	rawURL, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("net.fetch: url argument must be a string")
	}
	method := "GET"
	if len(args) >= 2 {
		if m, ok := args[1].(value.String); ok && string(m) != "" {
			method = string(m)
		}
	}

	if err := CheckSSRF(string(rawURL), method, h.Policy); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, string(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("net.fetch: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("net.fetch: %w", err)
	}
	defer resp.Body.Close()

	var limit int64 = 10 << 20
	if h.Policy != nil && h.Policy.MaxResponseBytes > 0 {
		limit = h.Policy.MaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("net.fetch: %w", err)
	}
	return value.String(body), nil
}

// CheckSSRF validates rawURL/method against the spec's SSRF rules
// (§6) before any network call is attempted.
func CheckSSRF(rawURL, method string, policy *NetPolicy) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("net.fetch: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("net.fetch: scheme %q not permitted, only http/https", u.Scheme)
	}
	if !policy.MethodAllowed(method) {
		return fmt.Errorf("net.fetch: method %q not permitted by policy", method)
	}
	host := u.Hostname()
	if !policy.DomainAllowed(host) {
		return fmt.Errorf("net.fetch: domain %q not permitted by policy", host)
	}
	if isBlockedHost(host) {
		return fmt.Errorf("net.fetch: host %q is blocked by SSRF policy", host)
	}
	return nil
}

func isBlockedHost(host string) bool {
	h := strings.ToLower(strings.Trim(host, "[]"))
	switch h {
	case "localhost", "::1", "0.0.0.0", "::", "::0":
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		// Hostnames that are not literal IPs are not resolved here;
		// DNS-based SSRF (rebinding) is left to the caller's network
		// egress controls — this handler only blocks literal targets
		// and the always-blocked names above.
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		if ip4.IsLoopback() || ip4.IsPrivate() || ip4.IsLinkLocalUnicast() {
			return true
		}
		// CGNAT range 100.64.0.0/10.
		if ip4[0] == 100 && ip4[1]&0xC0 == 64 {
			return true
		}
		return false
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	// Unique local fc00::/7.
	if len(ip) == net.IPv6len && ip[0]&0xFE == 0xFC {
		return true
	}
	return false
}
