package redis

import (
	"context"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// SecurityProvider supplies an authenticated, TLS-configured Redis client
// and reports on the security of the resulting connection. The cache
// engine never interprets credentials itself; when no provider is given
// it connects with a plain client.
type SecurityProvider interface {
	// CreateSecureClient performs auth, TLS and certificate validation and
	// returns a ready client.
	CreateSecureClient(ctx context.Context) (goredis.UniversalClient, error)

	// ValidateConnection inspects an established connection.
	ValidateConnection(ctx context.Context, client goredis.UniversalClient) ConnectionSecurity

	// Status summarizes the provider's current security posture.
	Status() SecurityStatus
}

// ConnectionSecurity is the result of validating an established connection.
type ConnectionSecurity struct {
	IsSecure        bool     `json:"is_secure"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// SecurityStatus summarizes a provider's posture for health surfaces.
type SecurityStatus struct {
	Level   string `json:"level"`
	Summary string `json:"summary"`
}

// parseUsedMemory extracts used_memory from an INFO memory section.
func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}
