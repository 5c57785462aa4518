package config

import (
	"cfsync/common"
	"cfsync/log"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	ctx := log.Nop(context.Background())
	conf := Default()

	err := ApplyEnv(ctx, &conf, env(map[string]string{
		"CF_API_TOKEN":       "token",
		"CF_ZONE_ID":         "zone",
		"CF_UPDATE_INTERVAL": "60",
		"DB_PATH":            "/tmp/x.db",
		"CF_RECORDS":         `[{"record_id":"a","record_name":"a.example.com"},{"record_id":"b","record_name":"b.example.com"}]`,
	}))
	require.NoError(t, err)

	assert.Equal(t, "token", conf.Provider.APIToken)
	assert.Equal(t, "zone", conf.Provider.ZoneID)
	assert.Equal(t, common.Duration(time.Minute), conf.Service.RefreshRate)
	assert.Equal(t, "/tmp/x.db", conf.Store.Path)
	assert.Equal(t, DefaultListen, conf.Viewer.Listen)
	assert.Equal(t, []Record{
		{RecordID: "a", RecordName: "a.example.com"},
		{RecordID: "b", RecordName: "b.example.com"},
	}, conf.Records)
	assert.NoError(t, Validate(conf))
}

func TestApplyEnvLegacySingleRecord(t *testing.T) {
	ctx := log.Nop(context.Background())
	conf := Default()

	require.NoError(t, ApplyEnv(ctx, &conf, env(map[string]string{
		"CF_RECORD_ID":   "rid",
		"CF_RECORD_NAME": "home.example.com",
	})))

	assert.Equal(t, []Record{{RecordID: "rid", RecordName: "home.example.com"}}, conf.Records)
}

func TestApplyEnvBadInterval(t *testing.T) {
	conf := Default()
	err := ApplyEnv(log.Nop(context.Background()), &conf, env(map[string]string{"CF_UPDATE_INTERVAL": "soon"}))
	assert.Error(t, err)
}

func TestParseRecords(t *testing.T) {
	ctx := log.Nop(context.Background())

	t.Run("malformed list", func(t *testing.T) {
		assert.Empty(t, ParseRecords(ctx, `{not json`))
		assert.Empty(t, ParseRecords(ctx, `{"record_id":"a"}`))
	})

	t.Run("keeps incomplete entries", func(t *testing.T) {
		records := ParseRecords(ctx, `[{"record_name":"x.example.com"},"junk",{"record_id":42,"record_name":"y.example.com"}]`)
		assert.Equal(t, []Record{
			{RecordName: "x.example.com"},
			{RecordID: "42", RecordName: "y.example.com"},
		}, records)
		assert.False(t, records[0].Valid())
		assert.True(t, records[1].Valid())
	})
}

func TestValidate(t *testing.T) {
	conf := Default()
	err := Validate(conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api token")
	assert.Contains(t, err.Error(), "zone")

	conf.Provider.APIToken = "t"
	conf.Provider.ZoneName = "example.com"
	assert.NoError(t, Validate(conf))
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"c.toml": `
[service]
refresh_rate = "2m"

[provider]
zone_id = "z"

[[record]]
record_id = "r1"
record_name = "one.example.com"
`,
		"c.yaml": `
service:
  refresh_rate: 2m
provider:
  zone_id: z
records:
  - record_id: r1
    record_name: one.example.com
`,
		"c.json": `{"service":{"refresh_rate":"2m"},"provider":{"zone_id":"z"},"records":[{"record_id":"r1","record_name":"one.example.com"}]}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			conf := Default()
			require.NoError(t, DecodeFile(path, &conf))
			assert.Equal(t, common.Duration(2*time.Minute), conf.Service.RefreshRate)
			assert.Equal(t, "z", conf.Provider.ZoneID)
			assert.Equal(t, DefaultBaseURL, conf.Provider.BaseURL)
			assert.Equal(t, []Record{{RecordID: "r1", RecordName: "one.example.com"}}, conf.Records)
		})
	}

	assert.Error(t, DecodeFile(filepath.Join(dir, "missing.toml"), &Config{}))
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CF_ZONE_NAME=dotenv.example.com\n"), 0o600))
	t.Setenv("CF_ZONE_NAME", "")
	os.Unsetenv("CF_ZONE_NAME")
	t.Setenv("CF_API_TOKEN", "from-env")

	conf, err := Load(log.Nop(context.Background()), "", envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv.example.com", conf.Provider.ZoneName)
	assert.Equal(t, "from-env", conf.Provider.APIToken)
	assert.Equal(t, []IPSource{{Type: "simple", Source: DefaultIPSource}}, conf.Sources)

	_, err = Load(log.Nop(context.Background()), "", filepath.Join(dir, "nope.env"))
	assert.NoError(t, err)
}
