package app

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/budg/pkg/jwtx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

func TestInitSigningKey(t *testing.T) {
	logger := slogx.Discard()

	t.Run("ephemeral outside prod", func(t *testing.T) {
		for _, alg := range []string{"HS256", "HS384", "HS512"} {
			signer, err := InitSigningKey(Config{Env: "dev", JWTAlgorithm: alg, Issuer: "budg-auth"}, logger)
			require.NoError(t, err, alg)
			assert.Equal(t, alg, signer.Alg())
		}
	})

	t.Run("required in prod", func(t *testing.T) {
		_, err := InitSigningKey(Config{Env: "prod", JWTAlgorithm: "HS256", Issuer: "budg-auth"}, logger)
		require.Error(t, err)
	})

	t.Run("configured secret", func(t *testing.T) {
		cfg := Config{Env: "prod", JWTAlgorithm: "HS256", Issuer: "budg-auth", JWTSecret: strings.Repeat("k", 32)}
		signer, err := InitSigningKey(cfg, logger)
		require.NoError(t, err)

		raw, err := signer.Sign(jwtx.NewClaims("budg-auth", "a@example.com", "access", time.Minute, time.Now()))
		require.NoError(t, err)

		claims, err := signer.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", claims.Subject)
	})

	t.Run("secret too short for algorithm", func(t *testing.T) {
		cfg := Config{Env: "dev", JWTAlgorithm: "HS512", Issuer: "budg-auth", JWTSecret: strings.Repeat("k", 32)}
		_, err := InitSigningKey(cfg, logger)
		require.ErrorIs(t, err, jwtx.ErrWeakSecret)
	})
}

func TestInitSealer(t *testing.T) {
	logger := slogx.Discard()

	t.Run("ephemeral outside prod", func(t *testing.T) {
		s, err := InitSealer(Config{Env: "dev"}, logger)
		require.NoError(t, err)
		sealed, err := s.Seal([]byte("secret"))
		require.NoError(t, err)
		plain, err := s.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "secret", string(plain))
	})

	t.Run("required in prod", func(t *testing.T) {
		_, err := InitSealer(Config{Env: "prod"}, logger)
		require.Error(t, err)
	})

	t.Run("file and inline keys agree", func(t *testing.T) {
		key := hex.EncodeToString([]byte(strings.Repeat("m", 32)))
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("m", 32)+"\n"), 0o600))

		fromFile, err := InitSealer(Config{Env: "prod", MasterKeyPath: path}, logger)
		require.NoError(t, err)
		inline, err := InitSealer(Config{Env: "prod", MasterKey: key}, logger)
		require.NoError(t, err)

		sealed, err := fromFile.Seal([]byte("totp"))
		require.NoError(t, err)
		plain, err := inline.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "totp", string(plain))
	})
}
