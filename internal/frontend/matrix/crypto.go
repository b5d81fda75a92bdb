// ABOUTME: End-to-end encryption setup for the Matrix adapter
// ABOUTME: Wraps the mautrix crypto helper with a per-user SQLite store

package matrix

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix/crypto/cryptohelper"
)

// CryptoManager owns the E2EE machinery for one Matrix account.
type CryptoManager struct {
	helper      *cryptohelper.CryptoHelper
	recoveryKey string
	logger      *slog.Logger
}

// SetupCrypto enables encryption on the adapter's client. With a recovery
// key the device is cross-signing verified; without one encryption still
// works but other devices see the bot as unverified.
func (f *Frontend) SetupCrypto(ctx context.Context) (*CryptoManager, error) {
	dataDir := f.config.Bridge.DataDir
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	userID := f.config.Matrix.UserID
	userSlug := slugify(userID)
	dbPath := filepath.Join(dataDir, fmt.Sprintf("matrix-crypto-%s.db", userSlug))
	logger := f.logger.With("component", "matrix-crypto")
	logger.Info("setting up encryption", "db", dbPath, "user", userSlug)

	helper, err := cryptohelper.NewCryptoHelper(f.client, deriveStoreKey(userID), dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}

	manager := &CryptoManager{
		helper:      helper,
		recoveryKey: f.config.Matrix.RecoveryKey,
		logger:      logger,
	}

	if manager.recoveryKey != "" {
		if err := manager.verifyWithRecoveryKey(ctx); err != nil {
			// Encryption still works without cross-signing.
			logger.Warn("failed to verify with recovery key", "error", err)
			logger.Info("encryption enabled without cross-signing verification")
		} else {
			logger.Info("encryption initialized with cross-signing verification")
		}
	} else {
		logger.Info("encryption initialized (no recovery key - cross-signing disabled)")
	}

	return manager, nil
}

// verifyWithRecoveryKey verifies this device for cross-signing.
func (cm *CryptoManager) verifyWithRecoveryKey(ctx context.Context) error {
	machine := cm.helper.Machine()
	if machine == nil {
		return fmt.Errorf("crypto machine not initialized")
	}
	if err := machine.VerifyWithRecoveryKey(ctx, cm.recoveryKey); err != nil {
		return fmt.Errorf("recovery key verification failed: %w", err)
	}
	cm.logger.Info("device verified with recovery key")
	return nil
}

// Close cleans up crypto resources.
func (cm *CryptoManager) Close() error {
	if cm.helper != nil {
		return cm.helper.Close()
	}
	return nil
}

// slugify converts a Matrix user ID to a filesystem-safe string.
// Example: @murmur:matrix.org -> murmur_matrix.org
func slugify(userID string) string {
	s := userID
	if len(s) > 0 && s[0] == '@' {
		s = s[1:]
	}
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '_' {
			result = append(result, c)
		} else if c == ':' {
			result = append(result, '_')
		}
	}
	return string(result)
}

// deriveStoreKey creates a deterministic store encryption key from user ID,
// giving each account an isolated crypto store without external secrets.
func deriveStoreKey(userID string) []byte {
	h := sha256.Sum256([]byte("murmur-matrix-crypto:" + userID))
	return h[:]
}
