package requestcontext

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
)

type clientIPKey struct{}

type WithClientIPConfig struct {
	// [Optional] TrustedProxiesIP lists the CIDR ranges of every proxy between the server and the client.
	//
	// When set, the client IP is the last `X-Forwarded-For` entry outside these ranges.
	// List all of them, a missing range lets a client spoof its address.
	TrustedProxiesIP []string `mapstructure:"trusted_proxies_ip"`

	// [Optional] TrustedHeader is a header holding the client IP, e.g. X-Real-IP or CF-Connecting-IP.
	// A valid IP in it wins over everything else.
	TrustedHeader string `mapstructure:"trusted_proxies_header"`

	// EnableRejectMalformedRequest answers 403 when a proxied request has no usable client IP.
	EnableRejectMalformedRequest bool `mapstructure:"enable_reject_malformed_request"`
}

// Validate checks the trusted proxy ranges.
func (c WithClientIPConfig) Validate() error {
	_, err := newTrustedProxy(c.TrustedProxiesIP)
	return errors.WithStack(err)
}

// WithClientIP sets the client IP of the request in its context, guarding against XFF spoofing.
//
// Without trusted proxies, a proxied request resolves to the first `X-Forwarded-For` entry.
func WithClientIP(config WithClientIPConfig) Option {
	trustedProxies, err := newTrustedProxy(config.TrustedProxiesIP)
	if err != nil {
		logger.Panic("Failed to parse trusted proxies", slogx.Error(err))
	}

	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		var header string
		if config.TrustedHeader != "" {
			header = c.Get(config.TrustedHeader)
		}

		ip, ok := resolveClientIP(header, c.IPs(), trustedProxies)
		if ok {
			return context.WithValue(ctx, clientIPKey{}, ip), nil
		}
		if ip == "" {
			// not proxied
			return context.WithValue(ctx, clientIPKey{}, c.IP()), nil
		}

		if config.EnableRejectMalformedRequest {
			logger.WarnContext(ctx, "IP Spoofing detected, returning 403 Forbidden",
				slogx.String("event", "requestcontext/ip_spoofing_detected"),
				slogx.String("module", "requestcontext/with_clientip"),
				slogx.String("ip", c.IP()),
				slogx.Strings("ips", c.IPs()),
			)
			return nil, requestcontextError{
				status:  fiber.StatusForbidden,
				message: "not allowed to access",
			}
		}
		return context.WithValue(ctx, clientIPKey{}, ip), nil
	}
}

// resolveClientIP picks the client IP from a trusted header value and the X-Forwarded-For chain.
// It returns ok when the IP is trustworthy. Otherwise ip is the first forwarded entry, empty when
// the request was not proxied.
func resolveClientIP(header string, forwarded []string, trusted trustedProxy) (ip string, ok bool) {
	if header != "" && net.ParseIP(header) != nil {
		return header, true
	}

	chain := parseIPs(forwarded)
	if len(chain) == 0 {
		return "", false
	}

	if len(trusted) > 0 {
		for i := len(chain) - 1; i >= 0; i-- {
			if !trusted.IsTrusted(chain[i]) {
				return chain[i].String(), true
			}
		}
		// every hop is a trusted proxy
		return chain[0].String(), true
	}
	return chain[0].String(), false
}

// GetClientIP get clientIP from context. If not found, return empty string
//
// Warning: Request context should be setup before using this function
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

type trustedProxy []*net.IPNet

func newTrustedProxy(ranges []string) (trustedProxy, error) {
	nets := make(trustedProxy, 0, len(ranges))
	for _, r := range ranges {
		_, ipnet, err := net.ParseCIDR(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse CIDR for %q", r)
		}
		nets = append(nets, ipnet)
	}
	return nets, nil
}

func (t trustedProxy) IsTrusted(ip net.IP) bool {
	for _, r := range t {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// parseIPs parses the forwarded entries, dropping the malformed ones.
func parseIPs(values []string) []net.IP {
	ips := make([]net.IP, 0, len(values))
	for _, v := range values {
		if ip := net.ParseIP(v); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips
}
