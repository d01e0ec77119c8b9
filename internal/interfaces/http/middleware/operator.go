package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/agencyhq/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// OperatorAccess restricts the operator surfaces (API docs, the outbox
// console) to a set of networks. An empty Networks list admits everyone.
type OperatorAccess struct {
	Enabled  bool
	Networks []netip.Prefix
}

// ParseNetworks reads an allow list of addresses and CIDR ranges. A bare
// address becomes a single-host prefix.
func ParseNetworks(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("operator network %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("operator network %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Admits reports whether a request from addr may pass
func (a OperatorAccess) Admits(addr netip.Addr) bool {
	if len(a.Networks) == 0 {
		return true
	}
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.Networks {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RequireOperator answers 404 while the surface is disabled and 403 to
// callers outside the allowed networks. Authentication stays with the JWT
// middleware.
func RequireOperator(access OperatorAccess, surface string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !access.Enabled {
			abortWithError(c, http.StatusNotFound, dto.ErrCodeNotFound, surface+" is not available")
			return
		}
		if !access.Admits(callerAddr(c)) {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, surface+" is restricted to operator networks")
			return
		}
		c.Next()
	}
}

// callerAddr is gin's client IP, which honours the trusted proxies set on
// the engine
func callerAddr(c *gin.Context) netip.Addr {
	addr, err := netip.ParseAddr(c.ClientIP())
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
