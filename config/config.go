// Package config loads the operator-supplied startup configuration (spec.md
// §6 "Operator-config surface"), consumed exactly once when the bot process
// starts.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"stroma/runtime"
)

// Config mirrors runtime.OperatorConfig in TOML form. Unlike the rest of the
// trust-mesh state, nothing here is replicated or governed by proposals.
type Config struct {
	StorePath         string `toml:"StorePath"`
	ChatServers       string `toml:"ChatServers"` // "production" | "staging"
	PinnedOverlayAddr string `toml:"PinnedOverlayAddr"`
	LogLevel          string `toml:"LogLevel"`
	LogFile           string `toml:"LogFile"`
	AdminListenAddr   string `toml:"AdminListenAddr"`
	GroupID           string `toml:"GroupID"`
	MnemonicFile      string `toml:"MnemonicFile"`
	HealthCheckSecs   uint64 `toml:"HealthCheckSecs"`

	// IdentityKeystorePath/IdentityKeyPassphrase locate this bot's secp256k1
	// network identity, persisted via identity.SaveIdentityKeystore. A fresh
	// key is generated and saved there on first run.
	IdentityKeystorePath  string `toml:"IdentityKeystorePath"`
	IdentityKeyPassphrase string `toml:"IdentityKeyPassphrase"`

	// RegistryDBPath is the SQLite file backing the persistence registry and
	// audit trail (registrystore.OpenSQLite).
	RegistryDBPath string `toml:"RegistryDBPath"`
}

// ErrConfigTemplateWritten is returned by Load when no config file existed
// and a commented template was written in its place; the operator must fill
// it in (starting with MnemonicFile) and rerun.
var ErrConfigTemplateWritten = fmt.Errorf("config: wrote default template; fill in MnemonicFile and rerun")

// Load reads path as TOML. If the file does not exist, a commented default
// template is written and ErrConfigTemplateWritten is returned: stroma never
// auto-generates operator key material the way a validator-key bootstrap
// might, since MnemonicFile is the root of every derived subkey.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if werr := writeTemplate(path); werr != nil {
			return nil, werr
		}
		return nil, ErrConfigTemplateWritten
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MnemonicFile == "" {
		return fmt.Errorf("config: MnemonicFile is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("config: GroupID is required")
	}
	if c.ChatServers != "production" && c.ChatServers != "staging" {
		return fmt.Errorf("config: ChatServers must be \"production\" or \"staging\", got %q", c.ChatServers)
	}
	if c.HealthCheckSecs == 0 {
		c.HealthCheckSecs = 300
	}
	if c.IdentityKeystorePath == "" {
		return fmt.Errorf("config: IdentityKeystorePath is required")
	}
	if c.RegistryDBPath == "" {
		return fmt.Errorf("config: RegistryDBPath is required")
	}
	return nil
}

func writeTemplate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create template %s: %w", path, err)
	}
	defer f.Close()

	template := `# stroma operator configuration.
# MnemonicFile must point at a file holding a 24-word BIP-39 mnemonic; it is
# read once at startup and the file handle is never retained open. stroma
# will not generate one for you.
StorePath = "./stroma-data"
ChatServers = "staging"
PinnedOverlayAddr = ""
LogLevel = "info"
LogFile = ""
AdminListenAddr = ":9090"
GroupID = ""
MnemonicFile = ""
HealthCheckSecs = 300
IdentityKeystorePath = "./stroma-data/identity.json"
IdentityKeyPassphrase = ""
RegistryDBPath = "./stroma-data/registry.db"
`
	_, err = f.WriteString(template)
	return err
}

// ToOperatorConfig adapts the TOML-loaded config into the runtime package's
// consumed operator-config surface.
func (c *Config) ToOperatorConfig() runtime.OperatorConfig {
	return runtime.OperatorConfig{
		StorePath:         c.StorePath,
		ChatServers:       c.ChatServers,
		PinnedOverlayAddr: c.PinnedOverlayAddr,
		LogLevel:          c.LogLevel,
		LogFile:           c.LogFile,
		AdminListenAddr:   c.AdminListenAddr,
		MnemonicFile:      c.MnemonicFile,
		HealthCheckSecs:   c.HealthCheckSecs,
		GroupID:           c.GroupID,
	}
}

// ReadMnemonic reads and trims the mnemonic file's contents. Callers should
// derive a keyring.Keyring from the result immediately and let it go out of
// scope rather than holding onto the cleartext string.
func ReadMnemonic(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read mnemonic file: %w", err)
	}
	return trimTrailingNewline(string(data)), nil
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
