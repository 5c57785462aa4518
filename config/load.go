package config

import (
	"cfsync/common"
	"cfsync/log"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRefreshRate = 300 * time.Second
	DefaultStorePath   = "updates.db"
	DefaultListen      = ":8000"
	DefaultIPSource    = "https://api.ipify.org"
	DefaultBaseURL     = "https://api.cloudflare.com/client/v4"

	// AutoTTL asks the provider to pick the TTL itself.
	AutoTTL = 1
)

// LookupFunc resolves an environment variable, as os.LookupEnv does.
type LookupFunc func(key string) (string, bool)

func Default() Config {
	return Config{
		Service: Service{RefreshRate: common.Duration(DefaultRefreshRate)},
		Viewer:  Viewer{Listen: DefaultListen},
		Store:   Store{Path: DefaultStorePath},
		Provider: CloudflareConfig{
			BaseURL: DefaultBaseURL,
			TTL:     AutoTTL,
		},
	}
}

// Load builds the configuration from the optional file at path, the optional
// dotenv file and the process environment, in that order of precedence.
func Load(ctx context.Context, path, envFile string) (Config, error) {
	ctx = log.SWith(ctx, log.Stage("init:config"))
	conf := Default()

	if path != "" {
		if err := DecodeFile(path, &conf); err != nil {
			return Config{}, err
		}
		log.S(ctx).Infow("config file loaded", "path", path)
	}

	if envFile != "" {
		err := godotenv.Load(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.S(ctx).Debugw("no env file", "path", envFile)
		case err != nil:
			return Config{}, fmt.Errorf("failed loading env file: %w", err)
		default:
			log.S(ctx).Infow("env file loaded", "path", envFile)
		}
	}

	if err := ApplyEnv(ctx, &conf, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if len(conf.Sources) == 0 {
		conf.Sources = []IPSource{{Type: "simple", Source: DefaultIPSource}}
	}

	return conf, nil
}

func DecodeFile(path string, conf *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed opening config: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.NewDecoder(f).Decode(conf)
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(conf)
	case ".json":
		err = json.NewDecoder(f).Decode(conf)
	default:
		return fmt.Errorf("unknown config format %q", filepath.Ext(path))
	}

	if err != nil {
		return fmt.Errorf("failed decoding config: %w", err)
	}
	return nil
}

// ApplyEnv overlays the recognised environment variables onto conf.
func ApplyEnv(ctx context.Context, conf *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("CF_API_TOKEN", &conf.Provider.APIToken)
	str("CF_ZONE_ID", &conf.Provider.ZoneID)
	str("CF_ZONE_NAME", &conf.Provider.ZoneName)
	str("CF_API_BASE", &conf.Provider.BaseURL)
	str("DB_PATH", &conf.Store.Path)
	str("LISTEN_ADDR", &conf.Viewer.Listen)

	if v, ok := lookup("CF_UPDATE_INTERVAL"); ok && v != "" {
		var d common.Duration
		if err := d.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("bad CF_UPDATE_INTERVAL %q: %w", v, err)
		}
		conf.Service.RefreshRate = d
	}

	if v, ok := lookup("IP_SOURCE_URL"); ok && v != "" {
		conf.Sources = []IPSource{{Type: "simple", Source: v}}
	}

	if v, ok := lookup("CF_RECORDS"); ok && v != "" {
		conf.Records = ParseRecords(ctx, v)
	}

	id, _ := lookup("CF_RECORD_ID")
	name, _ := lookup("CF_RECORD_NAME")
	if len(conf.Records) == 0 && (id != "" || name != "") {
		conf.Records = []Record{{RecordID: id, RecordName: name}}
	}

	return nil
}

// ParseRecords decodes a JSON list of {record_id, record_name} objects.
// A malformed list yields no records; entries that are not objects are
// dropped. Entries with missing fields are kept so the sync loop can report
// them.
func ParseRecords(ctx context.Context, raw string) []Record {
	var entries []any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.S(ctx).Warnw("malformed record list, nothing will be synced", zap.Error(err))
		return nil
	}

	records := make([]Record, 0, len(entries))
	for i, entry := range entries {
		if _, ok := entry.(map[string]any); !ok {
			log.S(ctx).Warnw("record entry is not an object, skipped", "index", i, "entry", entry)
			continue
		}

		var r Record
		if err := common.WeakDecodeMap(entry, &r); err != nil {
			log.S(ctx).Warnw("bad record entry, skipped", "index", i, zap.Error(err))
			continue
		}

		records = append(records, r)
	}

	return records
}

func Validate(conf Config) error {
	var errs []error
	if conf.Provider.APIToken == "" {
		errs = append(errs, errors.New("api token is required"))
	}
	if conf.Provider.ZoneID == "" && conf.Provider.ZoneName == "" {
		errs = append(errs, errors.New("zone id or zone name is required"))
	}
	if conf.Service.RefreshRate <= 0 {
		errs = append(errs, errors.New("refresh rate should be positive"))
	}
	if conf.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}
	return errors.Join(errs...)
}
