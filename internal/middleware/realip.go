package middleware

import (
	"net"

	"github.com/labstack/echo/v4"
)

// ClientIPExtractor resolves c.RealIP() for the server.  X-Forwarded-For is
// only honoured when the hop that delivered it is one of proxies; with no
// proxies the socket peer address is used and the header is ignored.
// Loopback, link-local and private ranges are not trusted implicitly.
func ClientIPExtractor(proxies []string) (echo.IPExtractor, error) {
	prefixes, err := parsePrefixes(proxies, "trusted proxy")
	if err != nil {
		return nil, err
	}
	if len(prefixes) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, p := range prefixes {
		addr := p.Addr()
		opts = append(opts, echo.TrustIPRange(&net.IPNet{
			IP:   net.IP(addr.AsSlice()),
			Mask: net.CIDRMask(p.Bits(), addr.BitLen()),
		}))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}
