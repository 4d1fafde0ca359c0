package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles route table loading from files and readers.
type Loader struct {
	basePath string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadConfig loads a route table from a file path.
func LoadConfig(path string) (*RouteTable, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads a route table from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*RouteTable, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads a route table from a file path.
func (l *Loader) Load(path string) (*RouteTable, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.basePath = filepath.Dir(absPath)

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parseConfig(data)
}

// LoadFromReader loads a route table from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*RouteTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig parses YAML data into a RouteTable on top of defaults.
func (l *Loader) parseConfig(data []byte) (*RouteTable, error) {
	// Substitute environment variables
	content := l.substituteEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	// Handle escaped dollar signs first
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	// Restore escaped dollar signs
	result = strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")

	return result
}

// MergeConfigs merges multiple route tables, with later tables taking precedence.
func MergeConfigs(configs ...*RouteTable) *RouteTable {
	if len(configs) == 0 {
		return DefaultConfig()
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		result = mergeTwo(result, configs[i])
	}

	return result
}

// mergeTwo merges two route tables, with the second taking precedence.
func mergeTwo(base, override *RouteTable) *RouteTable {
	if override == nil {
		return base
	}
	if base == nil {
		return override
	}

	result := *base

	if override.APIVersion != "" {
		result.APIVersion = override.APIVersion
	}
	if override.Kind != "" {
		result.Kind = override.Kind
	}
	if override.Metadata.Name != "" {
		result.Metadata.Name = override.Metadata.Name
	}

	// Merge labels and annotations into fresh maps; the base table must
	// not be mutated.
	result.Metadata.Labels = mergeStringMaps(base.Metadata.Labels, override.Metadata.Labels)
	result.Metadata.Annotations = mergeStringMaps(base.Metadata.Annotations, override.Metadata.Annotations)

	if override.Server.Listen != "" {
		result.Server = override.Server
	}
	if override.Logging.Level != "" || override.Logging.Format != "" {
		result.Logging = override.Logging
	}

	// Routes and URL map entries append
	result.Routes = append(append([]RouteConfig(nil), base.Routes...), override.Routes...)
	result.URLMap = append(append([]URLMapEntry(nil), base.URLMap...), override.URLMap...)

	if override.CORS != nil {
		result.CORS = override.CORS
	}

	return &result
}

// mergeStringMaps combines two maps into a new one, with values from
// the second taking precedence.
func mergeStringMaps(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// ResolveConfigPath resolves a configuration file path, checking common locations.
func ResolveConfigPath(path string) (string, error) {
	// If path is absolute and exists, use it
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("config file not found: %s", path)
	}

	// Check relative to current directory
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}

	// Check common locations
	etcPath := filepath.Join(string(filepath.Separator), "etc", "routemap")
	commonPaths := []string{
		filepath.Join("configs", path),
		filepath.Join(etcPath, path),
		filepath.Join(os.Getenv("HOME"), ".routemap", path),
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("config file not found: %s", path)
}
