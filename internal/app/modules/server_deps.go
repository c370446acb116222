package modules

import (
	"strings"

	"realmsteward.io/steward/internal/api/handlers"
	"realmsteward.io/steward/internal/api/middleware"
	"realmsteward.io/steward/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(mods []Module) handlers.ServerDeps {
	var deps handlers.ServerDeps
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// NewJWTConfig builds the bearer-token settings from the security section.
func NewJWTConfig(cfg *config.Config) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, key := range cfg.Security.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.JWTSigningKey),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.Security.JWTIssuer,
	}
}
