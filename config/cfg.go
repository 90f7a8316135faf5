package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"djc/blocks"
	"djc/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	EngineConfig struct {
		MarkerNamespace string   `yaml:"marker_namespace" validate:"required"`
		KeyPrefix       string   `yaml:"key_prefix"`
		StyleKey        string   `yaml:"style_key" validate:"required"`
		PreferSingleton []string `yaml:"prefer_singleton" validate:"dive,required"`
		RepairPayloads  bool     `yaml:"repair_payloads"`
		CheckCSS        bool     `yaml:"check_css"`
		MaxInputSize    int64    `yaml:"max_input_size" validate:"min=1"`
	}

	OutputConfig struct {
		Kind                  common.OutputKind `yaml:"kind" validate:"gte=0"`
		OutputNameTemplate    string            `yaml:"output_name_template"`
		FileNameTransliterate bool              `yaml:"file_name_transliterate"`
		Indent                string            `yaml:"indent"`
	}

	S3Config struct {
		Endpoint  string       `yaml:"endpoint"`
		Region    string       `yaml:"region,omitempty"`
		AccessKey string       `yaml:"access_key,omitempty"`
		SecretKey SecretString `yaml:"secret_key,omitempty"`
		Bucket    string       `yaml:"bucket" validate:"required"`
		Prefix    string       `yaml:"prefix,omitempty"`
		UseSSL    bool         `yaml:"use_ssl"`
	}

	StoreConfig struct {
		Kind       common.StoreKind `yaml:"kind" validate:"gte=0"`
		TTL        time.Duration    `yaml:"ttl" validate:"min=1s"`
		MaxEntries int              `yaml:"max_entries" validate:"min=1"`
		SQLitePath string           `yaml:"sqlite_path" validate:"required"`
		S3         S3Config         `yaml:"s3"`
	}

	ServerConfig struct {
		Listen         string        `yaml:"listen" validate:"required,hostname_port"`
		RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=1s"`
		AccessToken    SecretString  `yaml:"access_token,omitempty"`
		Store          StoreConfig   `yaml:"store"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Engine    EngineConfig   `yaml:"engine"`
		Output    OutputConfig   `yaml:"output"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// NOTE: must match yaml field name above.
const OutputNameTemplateFieldName TemplateFieldName = "output_name_template"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// Options converts engine section into parameters for block extraction.
func (conf *EngineConfig) Options() blocks.Options {
	return blocks.Options{
		Namespace:       conf.MarkerNamespace,
		KeyPrefix:       conf.KeyPrefix,
		StyleKey:        conf.StyleKey,
		PreferSingleton: append([]string(nil), conf.PreferSingleton...),
		RepairPayloads:  conf.RepairPayloads,
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// EnvPrefix is prepended to names of environment variables which override
// server configuration.
const EnvPrefix = "DJC_"

// ApplyEnv overwrites server settings with values from environment. lookup
// is normally os.LookupEnv. Result is validated again.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && len(strings.TrimSpace(v)) > 0
	}

	srv := &cfg.Server
	if v, ok := get("LISTEN"); ok {
		srv.Listen = v
	}
	if v, ok := get("ACCESS_TOKEN"); ok {
		srv.AccessToken = SecretString(v)
	}
	if v, ok := get("STORE"); ok {
		kind, err := common.ParseStoreKind(v)
		if err != nil {
			return fmt.Errorf("bad %sSTORE: %w", EnvPrefix, err)
		}
		srv.Store.Kind = kind
	}
	if v, ok := get("STORE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("bad %sSTORE_TTL: %w", EnvPrefix, err)
		}
		srv.Store.TTL = ttl
	}
	if v, ok := get("SQLITE_PATH"); ok {
		srv.Store.SQLitePath = v
	}
	if v, ok := get("S3_ENDPOINT"); ok {
		srv.Store.S3.Endpoint = v
	}
	if v, ok := get("S3_REGION"); ok {
		srv.Store.S3.Region = v
	}
	if v, ok := get("S3_ACCESS_KEY"); ok {
		srv.Store.S3.AccessKey = v
	}
	if v, ok := get("S3_SECRET_KEY"); ok {
		srv.Store.S3.SecretKey = SecretString(v)
	}
	if v, ok := get("S3_BUCKET"); ok {
		srv.Store.S3.Bucket = v
	}
	if v, ok := get("S3_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("bad %sS3_USE_SSL: %w", EnvPrefix, err)
		}
		srv.Store.S3.UseSSL = b
	}
	return gencfg.Validate(cfg)
}
