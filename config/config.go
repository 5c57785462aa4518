package config

import (
	"cfsync/common"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	Service  Service          `toml:"service" json:"service" yaml:"service"`
	Log      Log              `toml:"log" json:"log" yaml:"log"`
	Viewer   Viewer           `toml:"viewer" json:"viewer" yaml:"viewer"`
	Store    Store            `toml:"store" json:"store" yaml:"store"`
	Provider CloudflareConfig `toml:"provider" json:"provider" yaml:"provider"`
	Sources  []IPSource       `toml:"sources" json:"sources" yaml:"sources"`
	Records  []Record         `toml:"record" json:"records" yaml:"records"`
}

type Service struct {
	Name        string          `toml:"name" json:"name" yaml:"name"`
	RefreshRate common.Duration `toml:"refresh_rate" json:"refresh_rate" yaml:"refresh_rate"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Encoding  *string        `toml:"encoding" json:"encoding" yaml:"encoding"`
	InfoPath  *[]string      `toml:"info_path" json:"info_path" yaml:"info_path"`
	ErrorPath *[]string      `toml:"error_path" json:"error_path" yaml:"error_path"`
}

type Viewer struct {
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

type Store struct {
	Path string `toml:"path" json:"path" yaml:"path"`
}

type CloudflareConfig struct {
	APIToken string `toml:"api_token" json:"api_token" yaml:"api_token"`
	ZoneID   string `toml:"zone_id" json:"zone_id" yaml:"zone_id"`
	ZoneName string `toml:"zone_name" json:"zone_name" yaml:"zone_name"`
	BaseURL  string `toml:"base_url" json:"base_url" yaml:"base_url"`
	TTL      int    `toml:"ttl" json:"ttl" yaml:"ttl"`
	Proxied  bool   `toml:"proxied" json:"proxied" yaml:"proxied"`
}

type IPSource struct {
	Type   string         `toml:"type" json:"type" yaml:"type"`
	Source string         `toml:"source" json:"source" yaml:"source"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

type IPSourceSimpleConfig struct {
	Type    common.Family   `mapstructure:"type"`
	Timeout common.Duration `mapstructure:"timeout"`
}

type IPSourceCloudflareTraceConfig struct {
	Type         common.Family   `mapstructure:"type"`
	Timeout      common.Duration `mapstructure:"timeout"`
	ForceAddress string          `mapstructure:"force_address"`
}

// Record is one DNS record kept in sync. RecordID is assigned by the provider.
type Record struct {
	RecordID   string `toml:"record_id" json:"record_id" yaml:"record_id" mapstructure:"record_id"`
	RecordName string `toml:"record_name" json:"record_name" yaml:"record_name" mapstructure:"record_name"`
}

func (r Record) Valid() bool {
	return r.RecordID != "" && r.RecordName != ""
}
