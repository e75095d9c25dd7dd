// Package config loads ytscribe settings from defaults, config.toml, .env,
// the environment and command line flags, in increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/ytscribe/internal/platform"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EngineWhisperCPP = "whisper-cpp"
	EngineOpenAI     = "openai"

	EnvPrefix = "YTSCRIBE"
)

//go:embed config.toml
var defaultConfig []byte

type Config struct {
	OutputDir    string
	Listen       string
	ModelDir     string
	Engine       string
	WhisperPath  string
	OpenAIAPIKey string
	AutoDownload bool
	GinMode      string

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string
}

type LoadOptions struct {
	// ConfigFile replaces the XDG/working directory lookup when set.
	ConfigFile string
	// EnvFiles are loaded into the environment before reading it. Missing
	// files are skipped. Defaults to ".env".
	EnvFiles []string
	// Flags are bound by name, with dashes mapping to underscores.
	Flags *pflag.FlagSet
	// SearchPaths overrides where config.toml is looked for.
	SearchPaths []string
}

var flagKeys = map[string]string{
	"output-dir":    "output_dir",
	"listen":        "listen",
	"model-dir":     "model_dir",
	"engine":        "engine",
	"whisper-path":  "whisper_path",
	"auto-download": "auto_download",
	"gin-mode":      "gin_mode",
}

func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetDefault("output_dir", "transcriptions")
	v.SetDefault("listen", "127.0.0.1:5000")
	v.SetDefault("model_dir", "")
	v.SetDefault("engine", EngineWhisperCPP)
	v.SetDefault("whisper_path", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("auto_download", true)
	v.SetDefault("gin_mode", "release")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	_ = v.BindEnv("openai_api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = []string{platform.ConfigDir(), "."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		OutputDir:    v.GetString("output_dir"),
		Listen:       v.GetString("listen"),
		ModelDir:     v.GetString("model_dir"),
		Engine:       strings.ToLower(strings.TrimSpace(v.GetString("engine"))),
		WhisperPath:  v.GetString("whisper_path"),
		OpenAIAPIKey: v.GetString("openai_api_key"),
		AutoDownload: v.GetBool("auto_download"),
		GinMode:      v.GetString("gin_mode"),
		ConfigFile:   v.ConfigFileUsed(),
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = platform.DefaultModelDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Engine {
	case EngineWhisperCPP, EngineOpenAI:
	default:
		return fmt.Errorf("unsupported engine %q (use %s or %s)", c.Engine, EngineWhisperCPP, EngineOpenAI)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir must not be empty")
	}
	switch c.GinMode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("unsupported gin_mode %q (use release, debug or test)", c.GinMode)
	}
	if c.Engine == EngineOpenAI && c.OpenAIAPIKey == "" {
		return errors.New("engine openai needs openai_api_key or OPENAI_API_KEY")
	}
	return nil
}

// WriteDefault writes the commented default config.toml into dir unless one
// already exists. It reports whether a file was created.
func WriteDefault(dir string) (string, bool, error) {
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
		return "", false, fmt.Errorf("write default config: %w", err)
	}
	return path, true, nil
}
