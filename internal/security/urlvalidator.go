package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
)

// Hosts serving product thumbnails in shopping search results.
var thumbnailHosts = []string{
	"shopping-phinf.pstatic.net",
	"shop-phinf.pstatic.net",
}

var (
	ErrInvalidScheme = errors.New("only HTTPS image URLs are allowed")
	ErrUntrustedHost = errors.New("image host is not a known thumbnail host")
	ErrPrivateIP     = errors.New("image URL resolves to a non-public address")
)

// Special-purpose ranges that netip does not classify on its own.
var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
}

var skipValidation atomic.Bool

// SetSkipValidation disables URL checks. Tests use it to reach httptest
// servers on loopback.
func SetSkipValidation(skip bool) {
	skipValidation.Store(skip)
}

// CheckThumbnailURL accepts only HTTPS URLs on a known thumbnail host that
// resolve to public addresses.
func CheckThumbnailURL(ctx context.Context, rawURL string) error {
	return checkImageURL(ctx, rawURL, true)
}

// CheckRemoteImageURL accepts HTTPS URLs on any host that resolves to
// public addresses, such as images returned by a generation API.
func CheckRemoteImageURL(ctx context.Context, rawURL string) error {
	return checkImageURL(ctx, rawURL, false)
}

// IsThumbnailHost reports whether host is, or is a subdomain of, a known
// thumbnail host.
func IsThumbnailHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, h := range thumbnailHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func checkImageURL(ctx context.Context, rawURL string, thumbnail bool) error {
	if skipValidation.Load() {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return ErrInvalidScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	if thumbnail && !IsThumbnailHost(host) {
		return fmt.Errorf("%w: %s", ErrUntrustedHost, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !IsPublicAddr(addr) {
			return fmt.Errorf("%w: %s", ErrPrivateIP, addr)
		}
		return nil
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		// unresolvable hosts fail in the HTTP client instead
		return nil
	}
	for _, addr := range addrs {
		if !IsPublicAddr(addr) {
			return fmt.Errorf("%w: %s -> %s", ErrPrivateIP, host, addr)
		}
	}
	return nil
}

// IsPublicAddr reports whether addr is a globally routable unicast address.
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range reserved {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}
