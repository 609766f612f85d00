// Package registry resolves service names to adapters at runtime.
package registry

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/protocol"
	"github.com/magicians360/pinkflow/pkg/services"
	"github.com/xeipuuv/gojsonschema"
)

// Service is a named adapter instance that steps can target.
type Service struct {
	Name        string
	Integration models.IntegrationType
	Adapter     protocol.Adapter
	Actions     []string

	schemas map[string]*gojsonschema.Schema
}

// ParametersSchema returns the compiled parameter schema for action, if one was declared.
func (s *Service) ParametersSchema(action string) *gojsonschema.Schema {
	return s.schemas[action]
}

// SupportsAction reports whether the service accepts action. Services that declare no actions accept any.
func (s *Service) SupportsAction(action string) bool {
	if len(s.Actions) == 0 {
		return true
	}

	for _, known := range s.Actions {
		if known == action {
			return true
		}
	}

	return false
}

// Registry holds adapter factories and the services built from them.
type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[string]protocol.AdapterFactory
	services  map[string]*Service
	connected map[string]time.Time
	now       func() time.Time
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		factories: make(map[string]protocol.AdapterFactory),
		services:  make(map[string]*Service),
		connected: make(map[string]time.Time),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterFactory makes an adapter kind available to service definitions.
func (r *Registry) RegisterFactory(factory protocol.AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory
}

// Factories returns the registered adapter factories ordered by id.
func (r *Registry) Factories() []protocol.AdapterFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.AdapterFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool { return factories[i].ID() < factories[j].ID() })

	return factories
}

// ServiceOption customizes a registered service.
type ServiceOption func(*Service) error

// WithActions restricts the service to the listed actions.
func WithActions(actions ...string) ServiceOption {
	return func(s *Service) error {
		s.Actions = actions

		return nil
	}
}

// WithParametersSchema attaches a JSON schema that parameters of action must satisfy.
func WithParametersSchema(action string, schema map[string]any) ServiceOption {
	return func(s *Service) error {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			return fmt.Errorf("invalid schema for action %s: %w", action, err)
		}

		s.schemas[action] = compiled

		return nil
	}
}

// Register binds a service name to an adapter, replacing any previous binding.
func (r *Registry) Register(name string, integration models.IntegrationType, adapter protocol.Adapter, opts ...ServiceOption) error {
	if name == "" {
		return fmt.Errorf("service name is required")
	}

	service := &Service{
		Name:        name,
		Integration: integration,
		Adapter:     adapter,
		schemas:     make(map[string]*gojsonschema.Schema),
	}

	for _, opt := range opts {
		if err := opt(service); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
	}

	r.mu.Lock()
	r.services[name] = service
	r.mu.Unlock()

	r.logger.Info("Registered service", "service", name, "integration", integration)

	return nil
}

// RegisterDefinition builds a service from its configured definition using the named factory.
func (r *Registry) RegisterDefinition(def config.ServiceDefinition) error {
	r.mu.RLock()
	factory, ok := r.factories[def.Adapter]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("adapter type '%s' not registered", def.Adapter)
	}

	adapter, err := factory.Create(def.Config)
	if err != nil {
		return fmt.Errorf("failed to create adapter for service %s: %w", def.Name, err)
	}

	integration := models.IntegrationType(def.Integration)
	if integration == "" {
		integration = models.IntegrationInternal
	}

	opts := []ServiceOption{WithActions(def.Actions...)}
	for action, schema := range def.Schemas {
		opts = append(opts, WithParametersSchema(action, schema))
	}

	return r.Register(def.Name, integration, adapter, opts...)
}

// Lookup returns the service registered under name.
func (r *Registry) Lookup(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, ok := r.services[name]

	return service, ok
}

// Services returns the registered services ordered by name.
func (r *Registry) Services() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]*Service, 0, len(r.services))
	for _, service := range r.services {
		services = append(services, service)
	}

	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	return services
}

// Integrations describes every registered service, probing adapters that support health checks.
func (r *Registry) Integrations(ctx context.Context) []models.Integration {
	services := r.Services()
	integrations := make([]models.Integration, 0, len(services))

	for _, service := range services {
		integrations = append(integrations, r.describe(ctx, service))
	}

	return integrations
}

// Connect probes the named service and, when it answers, records the time it was reached.
func (r *Registry) Connect(ctx context.Context, name string) (models.Integration, error) {
	service, ok := r.Lookup(name)
	if !ok {
		return models.Integration{}, services.NewNotFoundError("registry.Connect", "integration "+name+" not found", nil)
	}

	integration := r.describe(ctx, service)

	if integration.Status == models.IntegrationConnected {
		now := r.now()

		r.mu.Lock()
		r.connected[name] = now
		r.mu.Unlock()

		integration.ConnectedAt = &now
	}

	r.logger.InfoContext(ctx, "Integration connect", "service", name, "status", integration.Status)

	return integration, nil
}

func (r *Registry) describe(ctx context.Context, service *Service) models.Integration {
	integration := models.Integration{
		ID:      service.Name,
		Name:    service.Name,
		Type:    service.Integration,
		Status:  models.IntegrationConnected,
		Actions: service.Actions,
	}

	if checker, ok := service.Adapter.(protocol.HealthChecker); ok {
		if err := checker.Ping(ctx); err != nil {
			r.logger.WarnContext(ctx, "Integration unreachable", "service", service.Name, "error", err)

			integration.Status = models.IntegrationDisconnected
			integration.Error = err.Error()
		}
	}

	r.mu.RLock()
	if at, ok := r.connected[service.Name]; ok {
		integration.ConnectedAt = &at
	}
	r.mu.RUnlock()

	return integration
}

// LoadAdapterPlugins opens every <pluginsPath>/adapters/**/*.so and registers the
// AdapterFactory each one exports under the symbol "Adapter".
func (r *Registry) LoadAdapterPlugins(pluginsPath string) error {
	factories, err := loadPlugin[protocol.AdapterFactory](r.logger, pluginsPath, "Adapter")
	if err != nil {
		return err
	}

	for _, factory := range factories {
		r.RegisterFactory(factory)
	}

	return nil
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("plugin %s: symbol %s has unexpected type %T", p, symbolName, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
