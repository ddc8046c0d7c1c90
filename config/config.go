package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config captures the options shared by all subcommands.
type Config struct {
	MailDir          string
	StorageDir       string
	StatusDB         string
	SenderDomain     string
	InvoiceMarker    string
	NoticeKeywords   []string
	RefineTitles     bool
	IncludeCompleted bool
	ClassifierURL    string
	ClassifierModel  string
	ClassifierKey    string
	Listen           string
	LogLevel         string
	LogDir           string
	IncludeHeader    []string
	IncludeBody      []string
	ExcludeHeader    []string
	ExcludeBody      []string
}

// ClassifierEnabled reports whether an external classifier is configured.
func (c Config) ClassifierEnabled() bool {
	return c.ClassifierKey != ""
}

// RegisterFlags attaches the shared flags to cmd as persistent flags.
func RegisterFlags(cmd *cobra.Command) error {
	dataDir, err := defaultDataDir()
	if err != nil {
		return err
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Optional YAML file providing defaults for any flag")
	flags.String("env-file", ".env", "Dotenv file loaded before reading secrets")
	flags.String("mail-dir", "", "Directory holding .eml, .msg and .mbox files")
	flags.String("storage-dir", filepath.Join(dataDir, "attachments"), "Directory for saved certificate and invoice attachments")
	flags.String("status-db", filepath.Join(dataDir, "status.db"), "SQLite database holding reminder completion state")
	flags.String("sender-domain", "sptl.com.cn", "Only reminders sent from this domain are accepted")
	flags.String("invoice-marker", "【发票】", "Subject marker of fee invoice messages")
	flags.StringArray("notice-keyword", nil, "Keyword selecting notice messages (repeatable, replaces the defaults)")
	flags.Bool("refine-titles", true, "Replace reminder subjects with the application title found in the body")
	flags.Bool("include-completed", false, "Include reminders already marked completed")
	flags.String("classifier-url", "https://api.openai.com/v1", "Base URL of an OpenAI compatible notice classifier")
	flags.String("classifier-model", "gpt-4o-mini", "Model used by the notice classifier")
	flags.String("classifier-key", "", "Classifier API key (falls back to CLASSIFIER_API_KEY env var); empty disables the classifier")
	flags.String("listen", "127.0.0.1:5000", "Listen address of the HTTP API")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (optional)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with
// validation. Values from --config fill flags not given on the command line.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	if configPath != "" {
		if err := applyFile(cmd, configPath); err != nil {
			return Config{}, err
		}
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return Config{}, err
	}
	if err := loadEnv(envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	strs := []struct {
		name string
		dst  *string
	}{
		{"mail-dir", &cfg.MailDir},
		{"storage-dir", &cfg.StorageDir},
		{"status-db", &cfg.StatusDB},
		{"sender-domain", &cfg.SenderDomain},
		{"invoice-marker", &cfg.InvoiceMarker},
		{"classifier-url", &cfg.ClassifierURL},
		{"classifier-model", &cfg.ClassifierModel},
		{"classifier-key", &cfg.ClassifierKey},
		{"listen", &cfg.Listen},
		{"log-level", &cfg.LogLevel},
		{"log-dir", &cfg.LogDir},
	}
	for _, s := range strs {
		if *s.dst, err = flags.GetString(s.name); err != nil {
			return Config{}, err
		}
	}

	arrays := []struct {
		name string
		dst  *[]string
	}{
		{"notice-keyword", &cfg.NoticeKeywords},
		{"include-header", &cfg.IncludeHeader},
		{"include-body", &cfg.IncludeBody},
		{"exclude-header", &cfg.ExcludeHeader},
		{"exclude-body", &cfg.ExcludeBody},
	}
	for _, a := range arrays {
		if *a.dst, err = flags.GetStringArray(a.name); err != nil {
			return Config{}, err
		}
	}

	if cfg.RefineTitles, err = flags.GetBool("refine-titles"); err != nil {
		return Config{}, err
	}
	if cfg.IncludeCompleted, err = flags.GetBool("include-completed"); err != nil {
		return Config{}, err
	}

	if cfg.ClassifierKey == "" {
		cfg.ClassifierKey = os.Getenv("CLASSIFIER_API_KEY")
	}

	cfg.SenderDomain = strings.ToLower(strings.TrimSpace(cfg.SenderDomain))
	if cfg.MailDir != "" {
		cfg.MailDir = filepath.Clean(cfg.MailDir)
	}
	cfg.StorageDir = filepath.Clean(cfg.StorageDir)
	cfg.StatusDB = filepath.Clean(cfg.StatusDB)

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RequireMailDir fails when no mail directory is configured.
func (c Config) RequireMailDir() error {
	if c.MailDir == "" {
		return fmt.Errorf("--mail-dir is required")
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.StorageDir == "" || cfg.StorageDir == "." {
		return fmt.Errorf("--storage-dir must not be empty")
	}
	if cfg.StatusDB == "" || cfg.StatusDB == "." {
		return fmt.Errorf("--status-db must not be empty")
	}
	if cfg.SenderDomain == "" {
		return fmt.Errorf("--sender-domain must not be empty")
	}
	if cfg.InvoiceMarker == "" {
		return fmt.Errorf("--invoice-marker must not be empty")
	}
	if cfg.ClassifierEnabled() && cfg.ClassifierURL == "" {
		return fmt.Errorf("--classifier-url is required when a classifier key is set")
	}
	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

// applyFile sets every flag named in the YAML file at path that was not
// given explicitly. Keys are flag names; lists feed repeatable flags.
func applyFile(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	flags := cmd.Flags()
	for _, name := range names {
		f := flags.Lookup(name)
		if f == nil || name == "config" {
			return fmt.Errorf("config file %s: unknown key %q", path, name)
		}
		if f.Changed {
			continue
		}
		items, isList := values[name].([]any)
		if !isList {
			items = []any{values[name]}
		}
		for _, item := range items {
			if err := flags.Set(name, fmt.Sprint(item)); err != nil {
				return fmt.Errorf("config file %s: %s: %w", path, name, err)
			}
		}
	}
	return nil
}

// loadEnv reads a dotenv file if present. Existing variables win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".patent-reminders"), nil
}
