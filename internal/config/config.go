package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/hash"
)

const (
	// AppName is the application name.
	AppName = "glia"
	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "GLIA"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"

	// PreferencesFileName is the shared preferences file under DataDir.
	PreferencesFileName = "preferences.json"
	// CacheFileName is the cache database under the namespaced cache dir.
	CacheFileName = "cache.db"
)

// HashConfig selects the content digest.
type HashConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// FleetConfig locates this process in a parallel job.
type FleetConfig struct {
	Rank int    `mapstructure:"rank"`
	Size int    `mapstructure:"size"`
	Addr string `mapstructure:"addr"`
}

// ToolchainConfig names the external build commands.
type ToolchainConfig struct {
	// Library compiles a directory of mods into the NEURON library.
	Library string `mapstructure:"library"`
	// Catalogue builds an arbor catalogue.
	Catalogue string `mapstructure:"catalogue"`
	// Describe prints the arbor build configuration. When empty the
	// catalogue command itself is fingerprinted.
	Describe string `mapstructure:"describe"`
}

// Config is the resolved configuration.
type Config struct {
	DataDir     string      `mapstructure:"data_dir"`
	CacheDir    string      `mapstructure:"cache_dir"`
	InstallRoot string      `mapstructure:"install_root"`
	Prefix      string      `mapstructure:"prefix"`
	PackageDirs []string    `mapstructure:"package_dirs"`
	Dialect     string      `mapstructure:"dialect"`
	NoCompile   bool        `mapstructure:"nocompile"`
	NoLoad      bool        `mapstructure:"noload"`
	Verbose     bool        `mapstructure:"verbose"`
	Hash        HashConfig  `mapstructure:"hash"`
	Fleet       FleetConfig `mapstructure:"fleet"`

	Toolchain ToolchainConfig `mapstructure:"toolchain"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// ConfigDir overrides the platform config directory.
	ConfigDir string
	// Flags, when set, override file and environment values for every
	// flag the user changed.
	Flags *pflag.FlagSet
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"data-dir":       "data_dir",
	"cache-dir":      "cache_dir",
	"package-dir":    "package_dirs",
	"dialect":        "dialect",
	"hash-algorithm": "hash.algorithm",
	"fleet-rank":     "fleet.rank",
	"fleet-size":     "fleet.size",
	"fleet-addr":     "fleet.addr",
	"verbose":        "verbose",
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "directory holding the preferences file")
	fs.String("cache-dir", "", "directory holding build caches and artifacts")
	fs.StringSlice("package-dir", nil, "directory to scan for packages (repeatable)")
	fs.String("dialect", "", "target dialect (neuron or arbor)")
	fs.String("hash-algorithm", "", "content digest (blake3 or highway)")
	fs.Int("fleet-rank", 0, "rank of this process in a parallel job")
	fs.Int("fleet-size", 0, "number of processes in a parallel job")
	fs.String("fleet-addr", "", "address of rank 0 in a parallel job")
	fs.BoolP("verbose", "v", false, "enable debug logging")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:     defaultDataDir(),
		CacheDir:    defaultCacheDir(),
		InstallRoot: defaultInstallRoot(),
		Prefix:      defaultPrefix(),
		Dialect:     string(asset.DialectNeuron),
		Hash:        HashConfig{Algorithm: string(hash.Blake3)},
		Fleet:       FleetConfig{Rank: 0, Size: 1, Addr: "127.0.0.1:7377"},
		Toolchain:   ToolchainConfig{Library: "nrnivmodl", Catalogue: "arbor-build-catalogue"},
	}
}

// Load resolves the configuration.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := Default()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("install_root", defaults.InstallRoot)
	v.SetDefault("prefix", defaults.Prefix)
	v.SetDefault("package_dirs", defaults.PackageDirs)
	v.SetDefault("dialect", defaults.Dialect)
	v.SetDefault("nocompile", defaults.NoCompile)
	v.SetDefault("noload", defaults.NoLoad)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("hash.algorithm", defaults.Hash.Algorithm)
	v.SetDefault("fleet.rank", defaults.Fleet.Rank)
	v.SetDefault("fleet.size", defaults.Fleet.Size)
	v.SetDefault("fleet.addr", defaults.Fleet.Addr)
	v.SetDefault("toolchain.library", defaults.Toolchain.Library)
	v.SetDefault("toolchain.catalogue", defaults.Toolchain.Catalogue)
	v.SetDefault("toolchain.describe", defaults.Toolchain.Describe)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType(ConfigFileExt)
	if opts.ConfigFile != "" {
		if !fileExists(opts.ConfigFile) {
			return nil, fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	} else {
		dir, err := configDir(opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(path) {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	var errs []error
	if !asset.ValidDialect(asset.Dialect(c.Dialect)) {
		errs = append(errs, fmt.Errorf("dialect: unknown dialect %q", c.Dialect))
	}
	if _, err := hash.New(hash.Algorithm(c.Hash.Algorithm)); err != nil {
		errs = append(errs, fmt.Errorf("hash.algorithm: %w", err))
	}
	if c.Fleet.Size < 1 {
		errs = append(errs, fmt.Errorf("fleet.size: must be at least 1, got %d", c.Fleet.Size))
	}
	if c.Fleet.Rank < 0 || c.Fleet.Rank >= max(c.Fleet.Size, 1) {
		errs = append(errs, fmt.Errorf("fleet.rank: %d out of range for size %d", c.Fleet.Rank, c.Fleet.Size))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir: must not be empty"))
	}
	if c.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir: must not be empty"))
	}
	return errors.Join(errs...)
}

// Hasher returns the configured content digest.
func (c *Config) Hasher() (*hash.Hasher, error) {
	return hash.New(hash.Algorithm(c.Hash.Algorithm))
}

// Namespace identifies this installation: the first 8 characters of the
// install root digest followed by the first 8 of the prefix digest.
func (c *Config) Namespace() string {
	return hash.String(c.InstallRoot)[:8] + hash.String(c.Prefix)[:8]
}

// PreferencesPath is the shared preferences file.
func (c *Config) PreferencesPath() string {
	return filepath.Join(c.DataDir, PreferencesFileName)
}

// NamespaceDir is the cache directory private to this installation.
func (c *Config) NamespaceDir() string {
	return filepath.Join(c.CacheDir, c.Namespace())
}

// CachePath is the cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.NamespaceDir(), CacheFileName)
}

// LibraryDir is where the NEURON mechanism library is built.
func (c *Config) LibraryDir() string {
	return filepath.Join(c.NamespaceDir(), "build")
}

// CatalogueDir is where catalogue artifacts are written.
func (c *Config) CatalogueDir() string {
	return filepath.Join(c.NamespaceDir(), "_arb")
}

// EnsureDirs creates the data and namespaced cache directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.NamespaceDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func configDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName, "cache")
	}
	return filepath.Join(dir, AppName)
}

func defaultInstallRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

func defaultPrefix() string {
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		return venv
	}
	return string(filepath.Separator)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
