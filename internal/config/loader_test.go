package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRouteTable = `
apiVersion: routemap/v1
kind: RouteTable
metadata:
  name: test
server:
  listen: ":9090"
  trailingSlashMatch: true
  readTimeout: 5s
logging:
  level: debug
routes:
  - name: users
    paths: ["/users", "/users/{id}"]
    methods: [GET, POST]
    handler: userHandler
    method: Serve
    cors:
      allowOrigins: ["https://app.example.com"]
      maxAge: 30m
urlMap:
  - path: /files/**
    handler: fileHandler
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, sampleRouteTable)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "RouteTable", cfg.Kind)
	assert.Equal(t, "test", cfg.Metadata.Name)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.True(t, cfg.Server.TrailingSlashMatch)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	// Unset fields keep their defaults
	assert.Equal(t, "/metrics", cfg.Server.MetricsPath)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Routes, 1)
	route := cfg.Routes[0]
	assert.Equal(t, "users", route.Name)
	assert.Equal(t, []string{"/users", "/users/{id}"}, route.Paths)
	assert.Equal(t, "userHandler", route.Handler)
	require.NotNil(t, route.CORS)
	assert.Equal(t, 30*time.Minute, route.CORS.MaxAge.Duration())

	require.Len(t, cfg.URLMap, 1)
	assert.Equal(t, "/files/**", cfg.URLMap[0].Path)
}

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(sampleRouteTable))
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Metadata.Name)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "routes: [\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("ROUTEMAP_TEST_LISTEN", ":7070")
	os.Unsetenv("ROUTEMAP_TEST_UNSET")

	content := `
metadata:
  name: ${ROUTEMAP_TEST_UNSET:-fallback}
server:
  listen: "${ROUTEMAP_TEST_LISTEN}"
`
	cfg, err := LoadConfigFromReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "fallback", cfg.Metadata.Name)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestEnvSubstitutionEscapedDollar(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader("metadata:\n  name: \"a$$b\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "a$b", cfg.Metadata.Name)
}

func TestToPolicy(t *testing.T) {
	t.Parallel()

	var nilCfg *CORSConfig
	assert.Nil(t, nilCfg.ToPolicy())

	policy := (&CORSConfig{
		AllowOrigins: []string{"*"},
		MaxAge:       Duration(time.Minute),
	}).ToPolicy()
	require.NotNil(t, policy)
	assert.Equal(t, []string{"*"}, policy.AllowOrigins)
	assert.Equal(t, 60, policy.MaxAge)
}

func TestMergeConfigs(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	base.Metadata.Name = "base"
	base.Routes = []RouteConfig{{Name: "a", Paths: []string{"/a"}, Handler: "h"}}

	override := &RouteTable{
		Metadata: Metadata{Name: "override"},
		Server:   ServerConfig{Listen: ":9999"},
		Routes:   []RouteConfig{{Name: "b", Paths: []string{"/b"}, Handler: "h"}},
	}

	merged := MergeConfigs(base, override)
	assert.Equal(t, "override", merged.Metadata.Name)
	assert.Equal(t, ":9999", merged.Server.Listen)
	require.Len(t, merged.Routes, 2)
	assert.Equal(t, "a", merged.Routes[0].Name)
	assert.Equal(t, "b", merged.Routes[1].Name)

	assert.Same(t, base, MergeConfigs(base, nil))
	assert.NotNil(t, MergeConfigs())
}

func TestMergeConfigsLeavesBaseUntouched(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	base.Metadata.Labels = map[string]string{"env": "dev"}
	base.Metadata.Annotations = map[string]string{"team": "platform"}
	base.Routes = []RouteConfig{{Name: "a", Paths: []string{"/a"}, Handler: "h"}}

	override := &RouteTable{
		Metadata: Metadata{
			Labels:      map[string]string{"env": "prod", "region": "eu"},
			Annotations: map[string]string{"team": "edge"},
		},
		Routes: []RouteConfig{{Name: "b", Paths: []string{"/b"}, Handler: "h"}},
	}

	merged := MergeConfigs(base, override)
	assert.Equal(t, "prod", merged.Metadata.Labels["env"])
	assert.Equal(t, "eu", merged.Metadata.Labels["region"])
	assert.Equal(t, "edge", merged.Metadata.Annotations["team"])

	assert.Equal(t, map[string]string{"env": "dev"}, base.Metadata.Labels)
	assert.Equal(t, map[string]string{"team": "platform"}, base.Metadata.Annotations)
	require.Len(t, base.Routes, 1)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	valid := func() *RouteTable {
		cfg := DefaultConfig()
		cfg.Routes = []RouteConfig{
			{Name: "users", Paths: []string{"/users"}, Methods: []string{"GET"}, Handler: "h"},
		}
		cfg.URLMap = []URLMapEntry{{Path: "/files/**", Handler: "files"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RouteTable)
		wantErr string
	}{
		{name: "valid", mutate: func(*RouteTable) {}, wantErr: ""},
		{name: "nil config", mutate: nil, wantErr: "configuration must not be nil"},
		{
			name:    "wrong kind",
			mutate:  func(c *RouteTable) { c.Kind = "Gateway" },
			wantErr: "unsupported kind",
		},
		{
			name:    "bad log level",
			mutate:  func(c *RouteTable) { c.Logging.Level = "verbose" },
			wantErr: "unknown level",
		},
		{
			name:    "route without name",
			mutate:  func(c *RouteTable) { c.Routes[0].Name = "" },
			wantErr: "route name must not be empty",
		},
		{
			name: "duplicate route name",
			mutate: func(c *RouteTable) {
				c.Routes = append(c.Routes, c.Routes[0])
			},
			wantErr: "duplicate route name",
		},
		{
			name:    "route without paths",
			mutate:  func(c *RouteTable) { c.Routes[0].Paths = nil },
			wantErr: "at least one path",
		},
		{
			name:    "relative path",
			mutate:  func(c *RouteTable) { c.Routes[0].Paths = []string{"users"} },
			wantErr: "must start with /",
		},
		{
			name:    "route without handler",
			mutate:  func(c *RouteTable) { c.Routes[0].Handler = "" },
			wantErr: "handler reference must not be empty",
		},
		{
			name:    "unknown method",
			mutate:  func(c *RouteTable) { c.Routes[0].Methods = []string{"FETCH"} },
			wantErr: "unknown HTTP method",
		},
		{
			name: "duplicate url map path",
			mutate: func(c *RouteTable) {
				c.URLMap = append(c.URLMap, c.URLMap[0])
			},
			wantErr: "duplicate URL map path",
		},
		{
			name:    "url map entry without handler",
			mutate:  func(c *RouteTable) { c.URLMap[0].Handler = "" },
			wantErr: "handler reference must not be empty",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var cfg *RouteTable
			if tt.mutate != nil {
				cfg = valid()
				tt.mutate(cfg)
			}
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	path := writeTempConfig(t, sampleRouteTable)

	resolved, err := ResolveConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
