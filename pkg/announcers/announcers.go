package announcers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported announcer types.
	TypeSQS  = "sqs"
	TypeHTTP = "http"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

// configFile represents the structure of the announcers configuration file.
type configFile struct {
	Announcers []AnnouncerConfig `json:"announcers" yaml:"announcers"`
}

// AnnouncerConfig represents a single announcer entry declared in config files.
type AnnouncerConfig struct {
	ID      string               `json:"id" yaml:"id"`
	Type    string               `json:"type" yaml:"type"`
	Enabled *bool                `json:"enabled" yaml:"enabled"`
	SQS     *SQSAnnouncerConfig  `json:"sqs" yaml:"sqs"`
	HTTP    *HTTPAnnouncerConfig `json:"http" yaml:"http"`
}

// SQSAnnouncerConfig holds AWS SQS specific settings.
type SQSAnnouncerConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// HTTPAnnouncerConfig holds generic HTTP sink settings.
type HTTPAnnouncerConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry materializes announcer definitions loaded from config files.
type ConfigRegistry struct {
	mu         sync.RWMutex
	announcers []AnnouncerConfig
	idx        map[string]AnnouncerConfig
}

// LoadRegistry loads the announcer registry from a YAML/JSON file. An empty
// path or missing file yields an empty registry; publishing works without
// announcers.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return &ConfigRegistry{idx: map[string]AnnouncerConfig{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigRegistry{idx: map[string]AnnouncerConfig{}}, nil
		}
		return nil, fmt.Errorf("open announcers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read announcers file: %w", err)
	}

	fileReg, err := parseAnnouncerRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	reg := &ConfigRegistry{
		announcers: make([]AnnouncerConfig, len(fileReg.Announcers)),
		idx:        make(map[string]AnnouncerConfig, len(fileReg.Announcers)),
	}

	for i := range fileReg.Announcers {
		cfg := sanitizeAnnouncerConfig(fileReg.Announcers[i])
		if err := validateAnnouncerConfig(cfg); err != nil {
			return nil, fmt.Errorf("announcers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate announcer id %q", cfg.ID)
		}
		reg.announcers[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parseAnnouncerRegistry attempts to decode the announcers file content.
func parseAnnouncerRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg configFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return configFile{}, errors.New("announcers file format not recognized (expected YAML or JSON)")
}

// sanitizeAnnouncerConfig trims and normalizes the announcer config fields.
func sanitizeAnnouncerConfig(cfg AnnouncerConfig) AnnouncerConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SQS = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}

	return cfg
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateAnnouncerConfig checks that required fields are present.
func validateAnnouncerConfig(cfg AnnouncerConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for announcer %q", cfg.ID)
	}
	if cfg.Type == TypeSQS {
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for announcer %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for announcer %q", cfg.ID)
		}
		if cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for announcer %q", cfg.ID)
		}
	}
	if cfg.Type == TypeHTTP {
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for announcer %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for announcer %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the announcer config by id.
func (r *ConfigRegistry) ByID(id string) (AnnouncerConfig, bool) {
	if r == nil {
		return AnnouncerConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return AnnouncerConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured announcers.
func (r *ConfigRegistry) All() []AnnouncerConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AnnouncerConfig, len(r.announcers))
	copy(out, r.announcers)
	return out
}

// Enabled returns announcers that are enabled.
func (r *ConfigRegistry) Enabled() []AnnouncerConfig {
	if r == nil {
		return nil
	}

	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]AnnouncerConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg AnnouncerConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
