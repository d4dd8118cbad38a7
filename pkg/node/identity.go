package node

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
)

const identityFileName = "identity.key"

// dataDir returns the application data directory, defaulting to ~/.meshchat.
func dataDir(baseDir string) (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".meshchat"), nil
}

// LoadIdentity loads the private key from the data directory, generating
// and saving a new Ed25519 key on first run.
func LoadIdentity(baseDir string) (crypto.PrivKey, error) {
	dir, err := dataDir(baseDir)
	if err != nil {
		return nil, err
	}

	keyBytes, err := os.ReadFile(filepath.Join(dir, identityFileName))
	if err != nil {
		if os.IsNotExist(err) {
			privKey, _, err := crypto.GenerateEd25519Key(rand.Reader)
			if err != nil {
				return nil, err
			}
			if err := SaveIdentity(privKey, baseDir); err != nil {
				return nil, err
			}
			return privKey, nil
		}
		return nil, err
	}

	return crypto.UnmarshalPrivateKey(keyBytes)
}

// SaveIdentity writes the private key to the data directory.
func SaveIdentity(key crypto.PrivKey, baseDir string) error {
	dir, err := dataDir(baseDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	keyBytes, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, identityFileName), keyBytes, 0600)
}
