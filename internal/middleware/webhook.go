package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SignatureHeader carries hex(HMAC-SHA512(secret, body)) on webhook calls.
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBody bounds how much of a webhook body is buffered.
const maxWebhookBody = 1 << 20

// IPAllowList admits only callers whose real IP matches one of allowed.
// Entries are single addresses or CIDR prefixes.  An empty list admits
// nobody.
func IPAllowList(allowed []string, log *zap.Logger) (echo.MiddlewareFunc, error) {
	prefixes, err := parsePrefixes(allowed, "allow list")
	if err != nil {
		return nil, err
	}
	log = log.Named("webhook")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			addr, err := netip.ParseAddr(ip)
			if err == nil {
				addr = addr.Unmap()
				for _, p := range prefixes {
					if p.Contains(addr) {
						return next(c)
					}
				}
			}
			log.Warn("webhook from unlisted origin", zap.String("ip", ip))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "origin not allowed"})
		}
	}, nil
}

// parsePrefixes reads single addresses or CIDR prefixes, skipping blanks.
func parsePrefixes(entries []string, what string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, a := range entries {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(a, "/") {
			p, err := netip.ParsePrefix(a)
			if err != nil {
				return nil, fmt.Errorf("%s entry %q: %w", what, a, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(a)
		if err != nil {
			return nil, fmt.Errorf("%s entry %q: %w", what, a, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// WebhookSignature checks SignatureHeader against the raw body when secret
// is set, and restores the body for the handler.  With no secret it is a
// no-op.
func WebhookSignature(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return passThrough
	}
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
			}
			_ = req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))

			got, err := hex.DecodeString(strings.TrimSpace(req.Header.Get(SignatureHeader)))
			if err != nil || len(got) == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
			}
			mac := hmac.New(sha512.New, key)
			mac.Write(body)
			if !hmac.Equal(got, mac.Sum(nil)) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
			}
			return next(c)
		}
	}
}
