package identity

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// SaveIdentityKeystore writes key to an Ethereum v3 keystore file at path,
// encrypted under passphrase. This is the operator-facing persistence form
// for the bot's secp256k1 identity key (distinct from the mnemonic, which
// the keyring package handles separately); the parent directory is created
// with 0700 permissions if missing.
func SaveIdentityKeystore(path string, key *IdentityKey, passphrase string) error {
	if key == nil {
		return errors.New("identity: nil identity key")
	}
	if path == "" {
		return errors.New("identity: empty keystore path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(dir, "keystore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	ks := keystore.NewKeyStore(tmpDir, keystore.StandardScryptN, keystore.StandardScryptP)
	if _, err := ks.ImportECDSA(key.private, passphrase); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("identity: failed to create keystore file")
	}

	src := filepath.Join(tmpDir, entries[0].Name())
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(src, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadIdentityKeystore decrypts an Ethereum v3 keystore file using the
// supplied passphrase and returns the identity key it holds.
func LoadIdentityKeystore(path, passphrase string) (*IdentityKey, error) {
	if path == "" {
		return nil, errors.New("identity: empty keystore path")
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}

	return &IdentityKey{private: decrypted.PrivateKey}, nil
}
