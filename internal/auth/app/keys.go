package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
)

// InitSigningKey builds the HMAC signer for access and reset tokens.
//
// Without JWT_SECRET_KEY a random key is generated, which means every token
// becomes invalid when the service restarts. That is refused in prod.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.HMAC, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		if cfg.IsProd() {
			return nil, errors.New("JWT_SECRET_KEY is required in prod")
		}
		// 64 bytes of entropy covers the HS512 digest size.
		key, err := cryptox.GenerateToken(2 * cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
		secret = []byte(key)
		logger.Warn("JWT_SECRET_KEY not set, using an ephemeral signing key; tokens will not survive a restart")
	}

	signer, err := jwtx.NewHMAC(cfg.JWTAlgorithm, secret, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}
	logger.Info("token signer ready", "algorithm", signer.Alg(), "issuer", signer.Issuer())
	return signer, nil
}

// InitSealer builds the sealer for TOTP secrets at rest. An ephemeral master
// key makes enrolled MFA unusable after a restart, so it is dev only.
func InitSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	key, err := cryptox.LoadMasterKey(cfg.MasterKeyPath, cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		if cfg.IsProd() {
			return nil, errors.New("AUTH_MASTER_KEY or AUTH_MASTER_KEY_PATH is required in prod")
		}
		tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral master key: %w", err)
		}
		key = []byte(tok)
		logger.Warn("no master key configured, using an ephemeral one; MFA secrets will not survive a restart")
	} else if cfg.MasterKeyPath != "" {
		logger.Info("master key loaded", "path", cfg.MasterKeyPath)
	}

	return cryptox.NewSealer(key)
}
