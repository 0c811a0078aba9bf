package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mp-manager/mp-manager/internal/validation"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "MP_MANAGER"
	envConfigPath = "CONFIG_PATH"
	configName    = "config"
)

// flagBindings maps configuration keys to the CLI flags that may override them.
var flagBindings = map[string]string{
	"database.url": "db",
	"logging.file": "log-file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "protein_info.sqlite3")

	v.SetDefault("sources.mito_table_url", "https://www.mitoproteome.org/MITO_table.php")
	v.SetDefault("sources.mito_detail_marker", "MITO_detail.php")
	v.SetDefault("sources.entrez_gene_marker", "http://www.ncbi.nlm.nih.gov/sites/entrez")
	v.SetDefault("sources.mito_listing_size", 10000)
	v.SetDefault("sources.uniprot_url", "https://www.uniprot.org/uniprot/")
	v.SetDefault("sources.uniprot_mapping_url", "https://www.uniprot.org/mapping/")
	v.SetDefault("sources.pdb_rest_url", "https://www.rcsb.org/pdb/rest/")
	v.SetDefault("sources.group_size", 100)
	v.SetDefault("sources.delay", time.Second)

	v.SetDefault("http.ca_certs", "")
	v.SetDefault("http.certificate_dir", "")
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("http.user_agent", "mp-manager")

	v.SetDefault("logging.file", "csv.log")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.console", "stderr")

	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("prometheus.textfile", "")
	v.SetDefault("otel.enabled", false)
}

// LoadConfig reads config.yaml from configDir (or the working directory), merges
// the file named by CONFIG_PATH on top of it, then applies MP_MANAGER_* environment
// variables and any bound command line flags. Missing files are not an error, every
// key has a default.
func LoadConfig(logger *slog.Logger, version string, build string, buildDate string, configDir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Cannot load config from directory (%q): %w", configDir, err)
		}
		logger.Info("No configuration file found, using defaults", "dir", configDir)
	} else {
		logger.Info("Loaded configuration", "file", v.ConfigFileUsed())
	}

	if path := os.Getenv(envConfigPath); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("Cannot merge config from %s (%q): %w", envConfigPath, path, err)
		}
		logger.Info("Merged configuration", "file", path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("Cannot bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Cannot parse config: %w", err)
	}
	cfg.Service = &ServiceConfig{
		Version:   version,
		Build:     build,
		BuildDate: buildDate,
	}

	validate, err := validation.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("Invalid config: %w", err)
	}

	return &cfg, nil
}
