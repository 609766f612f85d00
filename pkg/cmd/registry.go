// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"os"

	"github.com/magicians360/pinkflow/pkg/adapters/builtin"
	"github.com/magicians360/pinkflow/pkg/adapters/httpservice"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/registry"
)

// InternalService is the service name the builtin adapter is always registered under.
const InternalService = "internal"

func registerAdapterPlugins(reg *registry.Registry, pluginsPath string) error {
	if pluginsPath == "" {
		return nil
	}

	if _, err := os.Stat(pluginsPath); os.IsNotExist(err) {
		return nil
	}

	return reg.LoadAdapterPlugins(pluginsPath)
}

func registerNativeAdapters(reg *registry.Registry, logger *slog.Logger) {
	reg.RegisterFactory(builtin.NewFactory(logger))
	reg.RegisterFactory(httpservice.NewFactory())
}

// NewRegistry builds the adapter registry: native factories, plugin factories, the builtin
// internal service, then the services declared in the services file.
func NewRegistry(logger *slog.Logger, services []config.ServiceDefinition, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	registerNativeAdapters(reg, logger)

	if err := registerAdapterPlugins(reg, pluginsPath); err != nil {
		return nil, err
	}

	err := reg.Register(InternalService, models.IntegrationInternal, builtin.NewAdapter(logger), registry.WithActions(builtin.Actions...))
	if err != nil {
		return nil, err
	}

	for _, definition := range services {
		if err := reg.RegisterDefinition(definition); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
