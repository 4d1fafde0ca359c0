// Package config defines the route table configuration format, its
// loader with environment variable substitution, and a file watcher
// for hot reload.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gatewaylab/routemap/internal/cors"
	"github.com/gatewaylab/routemap/internal/util"
)

// RouteTable is the top-level configuration document.
type RouteTable struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Metadata   Metadata       `yaml:"metadata"`
	Server     ServerConfig   `yaml:"server"`
	Logging    LoggingConfig  `yaml:"logging"`
	Routes     []RouteConfig  `yaml:"routes"`
	URLMap     []URLMapEntry  `yaml:"urlMap"`
	CORS       *CORSConfig    `yaml:"cors,omitempty"`
}

// Metadata identifies a route table.
type Metadata struct {
	Name        string            `yaml:"name"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Listen             string   `yaml:"listen"`
	MetricsPath        string   `yaml:"metricsPath"`
	ReadTimeout        Duration `yaml:"readTimeout"`
	WriteTimeout       Duration `yaml:"writeTimeout"`
	ShutdownTimeout    Duration `yaml:"shutdownTimeout"`
	TrailingSlashMatch bool     `yaml:"trailingSlashMatch"`
	LazyResolution     bool     `yaml:"lazyResolution"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RouteConfig maps URL patterns and HTTP methods to a handler method.
type RouteConfig struct {
	Name    string      `yaml:"name"`
	Paths   []string    `yaml:"paths"`
	Methods []string    `yaml:"methods,omitempty"`
	Handler string      `yaml:"handler"`
	Method  string      `yaml:"method"`
	CORS    *CORSConfig `yaml:"cors,omitempty"`
}

// URLMapEntry maps a URL pattern to a whole handler. The paths "/"
// and "/*" designate the root and default handlers.
type URLMapEntry struct {
	Path    string `yaml:"path"`
	Handler string `yaml:"handler"`
}

// CORSConfig is the YAML form of a cross-origin policy.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins,omitempty"`
	AllowMethods     []string `yaml:"allowMethods,omitempty"`
	AllowHeaders     []string `yaml:"allowHeaders,omitempty"`
	ExposeHeaders    []string `yaml:"exposeHeaders,omitempty"`
	AllowCredentials bool     `yaml:"allowCredentials,omitempty"`
	MaxAge           Duration `yaml:"maxAge,omitempty"`
}

// ToPolicy converts the YAML form into a cors.Config.
func (c *CORSConfig) ToPolicy() *cors.Config {
	if c == nil {
		return nil
	}
	return &cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           int(c.MaxAge.Duration().Seconds()),
	}
}

// DefaultConfig returns a route table with sensible defaults.
func DefaultConfig() *RouteTable {
	return &RouteTable{
		APIVersion: "routemap/v1",
		Kind:       "RouteTable",
		Server: ServerConfig{
			Listen:          ":8080",
			MetricsPath:     "/metrics",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// validLogLevels are the accepted logging levels.
var validLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "error": true,
}

// ValidateConfig checks the route table for structural errors.
func ValidateConfig(cfg *RouteTable) error {
	if cfg == nil {
		return util.NewConfigError("config", "configuration must not be nil")
	}
	if cfg.Kind != "" && cfg.Kind != "RouteTable" {
		return util.NewConfigError("kind", fmt.Sprintf("unsupported kind %q", cfg.Kind))
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return util.NewConfigError("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}

	names := make(map[string]bool, len(cfg.Routes))
	for i, route := range cfg.Routes {
		field := fmt.Sprintf("routes[%d]", i)
		if route.Name == "" {
			return util.NewConfigError(field+".name", "route name must not be empty")
		}
		if names[route.Name] {
			return util.NewConfigError(field+".name", fmt.Sprintf("duplicate route name %q", route.Name))
		}
		names[route.Name] = true
		if len(route.Paths) == 0 {
			return util.NewConfigError(field+".paths", "at least one path is required")
		}
		for _, p := range route.Paths {
			if !strings.HasPrefix(p, "/") {
				return util.NewConfigError(field+".paths", fmt.Sprintf("path %q must start with /", p))
			}
		}
		if route.Handler == "" {
			return util.NewConfigError(field+".handler", "handler reference must not be empty")
		}
		for _, m := range route.Methods {
			if !validHTTPMethod(m) {
				return util.NewConfigError(field+".methods", fmt.Sprintf("unknown HTTP method %q", m))
			}
		}
	}

	seen := make(map[string]bool, len(cfg.URLMap))
	for i, entry := range cfg.URLMap {
		field := fmt.Sprintf("urlMap[%d]", i)
		if entry.Path == "" {
			return util.NewConfigError(field+".path", "path must not be empty")
		}
		if !strings.HasPrefix(entry.Path, "/") {
			return util.NewConfigError(field+".path", fmt.Sprintf("path %q must start with /", entry.Path))
		}
		if seen[entry.Path] {
			return util.NewConfigError(field+".path", fmt.Sprintf("duplicate URL map path %q", entry.Path))
		}
		seen[entry.Path] = true
		if entry.Handler == "" {
			return util.NewConfigError(field+".handler", "handler reference must not be empty")
		}
	}

	return nil
}

var httpMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true, "TRACE": true,
}

func validHTTPMethod(m string) bool {
	return httpMethods[strings.ToUpper(m)]
}
