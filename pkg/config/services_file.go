package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServicesFile represents the structure of the services.yaml file.
type ServicesFile struct {
	Services   []ServiceDefinition  `yaml:"services"`
	SyncRoutes map[string]SyncRoute `yaml:"sync_routes"`
	AutoSync   []AutoSyncJob        `yaml:"auto_sync"`
}

// ServiceDefinition declares one external service and the adapter that reaches it.
type ServiceDefinition struct {
	Name        string                    `yaml:"name"`
	Adapter     string                    `yaml:"adapter"`
	Integration string                    `yaml:"integration"`
	Config      map[string]any            `yaml:"config"`
	Actions     []string                  `yaml:"actions"`
	Schemas     map[string]map[string]any `yaml:"schemas"`
}

// AutoSyncJob schedules a recurring sync for one record pair.
type AutoSyncJob struct {
	Type     string `yaml:"type"`
	SourceID string `yaml:"source_id"`
	TargetID string `yaml:"target_id"`
	Schedule string `yaml:"schedule"`
}

var ErrInvalidServicesFile = errors.New("invalid services file")

// LoadServicesFile loads service definitions from a YAML file.
func LoadServicesFile(filepath string) (*ServicesFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file %s: %w", filepath, err)
	}

	var file ServicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	return &file, nil
}

// Validate validates the services file.
func (f *ServicesFile) Validate() error {
	seen := make(map[string]bool, len(f.Services))

	for i, service := range f.Services {
		if service.Name == "" {
			return fmt.Errorf("%w: services[%d]: name is required", ErrInvalidServicesFile, i)
		}

		if service.Adapter == "" {
			return fmt.Errorf("%w: services[%d]: adapter is required", ErrInvalidServicesFile, i)
		}

		if seen[service.Name] {
			return fmt.Errorf("%w: services[%d]: duplicate service %q", ErrInvalidServicesFile, i, service.Name)
		}

		seen[service.Name] = true
	}

	for i, job := range f.AutoSync {
		if job.Type == "" || job.SourceID == "" || job.TargetID == "" {
			return fmt.Errorf("%w: auto_sync[%d]: type, source_id and target_id are required", ErrInvalidServicesFile, i)
		}
	}

	return nil
}

// Apply merges the file's sync routes into cfg, overriding routes with the same name.
func (f *ServicesFile) Apply(cfg *Config) {
	if len(f.SyncRoutes) == 0 {
		return
	}

	if cfg.SyncRoutes == nil {
		cfg.SyncRoutes = make(map[string]SyncRoute, len(f.SyncRoutes))
	}

	for name, route := range f.SyncRoutes {
		cfg.SyncRoutes[name] = route
	}
}
