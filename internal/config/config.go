package config

import "time"

type Config struct {
	Service    *ServiceConfig    `mapstructure:"service"`
	Database   *map[string]any   `mapstructure:"database"`
	Sources    *SourcesConfig    `mapstructure:"sources" validate:"required"`
	HTTP       *HTTPConfig       `mapstructure:"http" validate:"required"`
	Logging    *LoggingConfig    `mapstructure:"logging" validate:"required"`
	Export     *ExportConfig     `mapstructure:"export,omitempty"`
	OTEL       *OTELConfig       `mapstructure:"otel,omitempty"`
	Prometheus *PrometheusConfig `mapstructure:"prometheus,omitempty"`
}

type ServiceConfig struct {
	Version   string `mapstructure:"version,omitempty"`
	Build     string `mapstructure:"build,omitempty"`
	BuildDate string `mapstructure:"build_date,omitempty"`
}

// SourcesConfig holds the remote endpoints and the batching policy used when
// querying them.
type SourcesConfig struct {
	MitoTableURL     string `mapstructure:"mito_table_url" validate:"required,url"`
	MitoDetailMarker string `mapstructure:"mito_detail_marker" validate:"required"`
	EntrezGeneMarker string `mapstructure:"entrez_gene_marker" validate:"required"`
	MitoListingSize  int    `mapstructure:"mito_listing_size" validate:"gt=0"`
	UniprotURL       string `mapstructure:"uniprot_url" validate:"required,url"`
	UniprotMapURL    string `mapstructure:"uniprot_mapping_url" validate:"required,url"`
	PDBRestURL       string `mapstructure:"pdb_rest_url" validate:"required,url"`
	// GroupSize is the maximum number of identifiers sent in one request
	GroupSize int `mapstructure:"group_size" validate:"gt=0"`
	// Delay is the pause taken before every request after the first one of a stage
	Delay time.Duration `mapstructure:"delay" validate:"gte=0"`
}

type HTTPConfig struct {
	// CACerts is a comma separated list of PEM bundles, when set only these roots are trusted
	CACerts        string        `mapstructure:"ca_certs,omitempty"`
	CertificateDir string        `mapstructure:"certificate_dir,omitempty"`
	Timeout        time.Duration `mapstructure:"timeout,omitempty" validate:"gte=0"`
	UserAgent      string        `mapstructure:"user_agent,omitempty"`
}

type LoggingConfig struct {
	File    string `mapstructure:"file"`
	Format  string `mapstructure:"format" validate:"oneof=console json"`
	Console string `mapstructure:"console" validate:"oneof=stdout stderr"`
}

type ExportConfig struct {
	S3 *S3Config `mapstructure:"s3,omitempty"`
}

type S3Config struct {
	Region    string `mapstructure:"region,omitempty"`
	Endpoint  string `mapstructure:"endpoint,omitempty"`
	PathStyle bool   `mapstructure:"path_style,omitempty"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Textfile is where the registry is written after an update, in the
	// node-exporter textfile collector format
	Textfile string `mapstructure:"textfile,omitempty"`
}

func (c *Config) IsOTELEnabled() bool {
	return (c != nil) && (c.OTEL != nil) && c.OTEL.Enabled
}

func (c *Config) IsPrometheusEnabled() bool {
	return (c != nil) && (c.Prometheus != nil) && c.Prometheus.Enabled
}
