package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"LottoChain/internal/config"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadKeys collects signing keys from the wallet configuration: inline hex
// keys, a comma separated list in an environment variable, and every key file
// of a keystore directory decrypted with the configured passphrase.
func LoadKeys(cfg config.WalletConfig) ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey

	hexes := append([]string(nil), cfg.PrivateKeys...)
	if cfg.PrivateKeyEnv != "" {
		for _, part := range strings.Split(os.Getenv(cfg.PrivateKeyEnv), ",") {
			if part = strings.TrimSpace(part); part != "" {
				hexes = append(hexes, part)
			}
		}
	}
	for i, h := range hexes {
		key, err := ParsePrivateKey(h)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		keys = append(keys, key)
	}

	if cfg.KeystoreDir != "" {
		fromStore, err := loadKeystore(cfg.KeystoreDir, os.Getenv(cfg.PassphraseEnv))
		if err != nil {
			return nil, err
		}
		keys = append(keys, fromStore...)
	}
	return keys, nil
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix.
func ParsePrivateKey(h string) (*ecdsa.PrivateKey, error) {
	h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return key, nil
}

func loadKeystore(dir, passphrase string) ([]*ecdsa.PrivateKey, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	keys := make([]*ecdsa.PrivateKey, 0, len(names))
	for _, name := range names {
		blob, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", name, err)
		}
		key, err := keystore.DecryptKey(blob, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt key file %s: %w", name, err)
		}
		keys = append(keys, key.PrivateKey)
	}
	return keys, nil
}
