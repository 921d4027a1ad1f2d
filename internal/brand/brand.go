// Package brand provides centralized naming and directory defaults for the daemon.
//
// The identity is loaded from brand.json at compile time via go:embed so that
// packaging scripts can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Description      string `json:"description"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultStateDir  string `json:"defaultStateDir"`
	DefaultRunDir    string `json:"defaultRunDir"`
	DefaultTmpDir    string `json:"defaultTmpDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
	PIDFileName      string `json:"pidFileName"`
	NFTTableName     string `json:"nftTableName"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultStateDir = b.DefaultStateDir
	DefaultRunDir = b.DefaultRunDir
	DefaultTmpDir = b.DefaultTmpDir
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
	PIDFileName = b.PIDFileName
	NFTTableName = b.NFTTableName
}

var (
	Name             string
	LowerName        string
	Description      string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	DefaultStateDir  string
	DefaultRunDir    string
	DefaultTmpDir    string
	BinaryName       string
	ConfigFileName   string
	PIDFileName      string
	NFTTableName     string

	// Version is set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// dir resolves a directory: WRTD_<KEY>_DIR > WRTD_PREFIX/<sub> > def.
func dir(key, sub, def string) string {
	if d := os.Getenv(ConfigEnvPrefix + "_" + key + "_DIR"); d != "" {
		return d
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, sub)
	}
	return def
}

// GetConfigDir returns the directory holding global.json and per-plugin configs.
// Priority: WRTD_CONFIG_DIR > WRTD_PREFIX/etc > DefaultConfigDir
func GetConfigDir() string {
	return dir("CONFIG", "etc", DefaultConfigDir)
}

// GetStateDir returns the persistent state directory ("var dir").
// Priority: WRTD_STATE_DIR > WRTD_PREFIX/var > DefaultStateDir
func GetStateDir() string {
	return dir("STATE", "var", DefaultStateDir)
}

// GetRunDir returns the runtime directory for the PID file.
func GetRunDir() string {
	return dir("RUN", "run", DefaultRunDir)
}

// GetTmpDir returns the scratch directory. It is cleared on every start and
// removed on shutdown.
func GetTmpDir() string {
	return dir("TMP", "tmp", DefaultTmpDir)
}

// GetPIDFile returns the full path to the PID file.
func GetPIDFile() string {
	return filepath.Join(GetRunDir(), PIDFileName)
}
