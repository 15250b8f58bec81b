package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ARCHSETUP_"

// LoadOptions selects the configuration layers
type LoadOptions struct {
	// SystemPath is the machine-wide file; empty uses /etc/archsetup/config.toml
	SystemPath string
	// UserHome locates the invoking user's file; empty uses the process's XDG config dir
	UserHome string
	// ExplicitPath is a file that must exist, typically from --config
	ExplicitPath string
	// SkipFiles ignores the system and user files
	SkipFiles bool
	// SkipEnv ignores ARCHSETUP_* overrides
	SkipEnv bool
	// Overrides are dotted keys applied last, typically from --set
	Overrides map[string]string
}

// Load builds the configuration. Layers, later ones winning:
//  1. embedded defaults
//  2. system file (optional)
//  3. user file (optional)
//  4. explicit file (required when given)
//  5. ARCHSETUP_* environment variables
//  6. explicit overrides
func Load(opts LoadOptions) (*Config, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	systemPath := opts.SystemPath
	if systemPath == "" {
		systemPath = paths.SystemConfigPath()
	}
	if opts.ExplicitPath == "" && !opts.SkipEnv {
		if p := os.Getenv(paths.EnvConfigFile); p != "" {
			opts.ExplicitPath = p
		}
	}

	var sources []string
	var optional []string
	if !opts.SkipFiles {
		optional = []string{systemPath, paths.UserConfigPath(opts.UserHome)}
	}
	for _, path := range optional {
		loaded, err := loadOptionalFile(k, path)
		if err != nil {
			return nil, err
		}
		if loaded {
			sources = append(sources, path)
		}
	}

	if opts.ExplicitPath != "" {
		if _, err := os.Stat(opts.ExplicitPath); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "config file %s", opts.ExplicitPath)
		}
		if err := k.Load(file.Provider(opts.ExplicitPath), parserFor(opts.ExplicitPath)); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", opts.ExplicitPath)
		}
		sources = append(sources, opts.ExplicitPath)
	}

	if !opts.SkipEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
		}
	}

	if len(opts.Overrides) > 0 {
		values := make(map[string]interface{}, len(opts.Overrides))
		for key, value := range opts.Overrides {
			values[key] = value
		}
		if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}
	cfg.Sources = sources

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for list, dropped := range cfg.Duplicates() {
		logger.Debug().
			Str("list", list).
			Strs("duplicates", dropped).
			Msg("Dropped repeated package names, keeping first occurrences")
	}

	logger.Debug().
		Strs("sources", sources).
		Int("official", len(cfg.OfficialPackages())).
		Int("community", len(cfg.CommunityPackages())).
		Int("links", len(cfg.Links)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// Default returns the embedded defaults alone
func Default() (*Config, error) {
	return Load(LoadOptions{SkipFiles: true, SkipEnv: true})
}

func loadOptionalFile(k *koanf.Koanf, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, nil
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return false, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path)
	}
	return true, nil
}

// parserFor picks the parser from the file extension; TOML unless the file
// is YAML
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

// ParseOverride splits a key=value assignment
func ParseOverride(assignment string) (string, string, error) {
	key, value, ok := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", errors.Newf(errors.ErrInvalidInput, "override %q must look like key=value", assignment)
	}
	return key, strings.TrimSpace(value), nil
}

// envKey maps ARCHSETUP_HELPER__INSTALL_ARGS to helper.install_args.
// ARCHSETUP_CONFIG names a file rather than a key and is skipped.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "config" {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}
