package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadServicesConfig loads the services configuration from config/services.yaml
func LoadServicesConfig() (*ServicesConfig, error) {
	return LoadServicesConfigFromPath(filepath.Join("config", "services.yaml"))
}

// LoadServicesConfigFromPath loads the services configuration from a specific path
func LoadServicesConfigFromPath(path string) (*ServicesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services config: %w", err)
	}

	var cfg ServicesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse services config: %w", err)
	}

	// Validate that all services have required fields
	for id, settings := range cfg.Services {
		if settings.Port == 0 {
			return nil, fmt.Errorf("service %s: port is required", id)
		}
	}

	return &cfg, nil
}

// LoadServicesConfigOrDefault loads services config or returns default if file not found
func LoadServicesConfigOrDefault() *ServicesConfig {
	cfg, err := LoadServicesConfig()
	if err != nil {
		// Return default configuration with all services enabled
		return DefaultServicesConfig()
	}
	return cfg
}

// DefaultServicesConfig returns the default services configuration
func DefaultServicesConfig() *ServicesConfig {
	return &ServicesConfig{
		Services: map[string]*ServiceSettings{
			"webhook": {
				Enabled:     true,
				Port:        8080,
				Description: "Reddit webhook ingress and signature verification",
			},
			"cascade": {
				Enabled:     true,
				Port:        8081,
				Description: "Layered moderation cascade engine",
			},
			"analyzer": {
				Enabled:     true,
				Port:        8082,
				Description: "LLM provider coordination and coalescing",
			},
			"scheduler": {
				Enabled:     true,
				Port:        8083,
				Description: "Periodic trust decay and budget reset jobs",
			},
			"admin-api": {
				Enabled:     true,
				Port:        8084,
				Description: "Subreddit installation and rule-set management",
			},
		},
	}
}

// ServiceNameMapping provides mapping from legacy service names to canonical names.
var ServiceNameMapping = map[string]string{
	"ingress":     "webhook",
	"rule-engine": "cascade",
	"worker":      "analyzer",
	"cron":        "scheduler",
	"dashboard":   "admin-api",
}

// GetCanonicalServiceName converts a legacy service name to its canonical name.
func GetCanonicalServiceName(oldName string) string {
	if newName, ok := ServiceNameMapping[oldName]; ok {
		return newName
	}
	return oldName // Return as-is if not found (might already be canonical)
}
