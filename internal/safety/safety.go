// Package safety guards the service against hostile request inputs: capture
// URLs that point back into the host's own network, output paths that climb
// out of their directory, and unbounded response bodies.
package safety

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrPrivateTarget is returned when a capture URL resolves to a private,
// loopback, or link-local address.
var ErrPrivateTarget = errors.New("safety: target resolves to a private or loopback address")

// ErrPathTraversal is returned when a user-supplied path escapes its base
// directory.
var ErrPathTraversal = errors.New("safety: path escapes the output directory")

// CheckTargetURL checks that rawURL uses http or https, names a host, and
// does not resolve to an internal address. Hostnames are resolved so that
// internal services hidden behind public-looking DNS names are caught too.
func CheckTargetURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safety: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("safety: scheme %q is not allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("safety: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if internalIP(ip) {
			return ErrPrivateTarget
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// A lookup failure is not a verdict. The navigation attempt will
		// surface the real error if the host does not exist.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && internalIP(ip) {
			return ErrPrivateTarget
		}
	}
	return nil
}

// ConfinePath joins userPath beneath base and verifies the result cannot
// escape it. Absolute inputs and leading ".." segments are reinterpreted as
// base-relative; any remaining ".." is rejected outright.
func ConfinePath(base, userPath string) (string, error) {
	if strings.Contains(userPath, "..") {
		return "", ErrPathTraversal
	}
	joined := filepath.Join(base, filepath.Clean("/"+userPath))
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// LimitedReadAll reads at most maxBytes from r and errors when the source
// holds more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("safety: body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// internalIP covers loopback, RFC 1918 and RFC 4193 ranges, link-local, and
// the unspecified address, which connects to localhost on most stacks.
func internalIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
