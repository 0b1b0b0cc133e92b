package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/keepalive-agent/internal/registry"
	"github.com/benmeehan/keepalive-agent/internal/services"
	"github.com/benmeehan/keepalive-agent/internal/utils"
	"github.com/rs/zerolog"
)

// Components are the constructed agent services handed to RegisterServices.
type Components struct {
	Heartbeat *services.HeartbeatService
	Bridge    *services.KeepAliveBridge
	Reports   *services.ReportService
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new, empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]registry.Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices registers the enabled components in start order: the
// keep-alive module first so heartbeats carry its status, then the sender,
// then the periodic report.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, c Components) error {
	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "keepalive",
			enabled: config.KeepAlive.Enabled,
			constructor: func() (registry.Service, error) {
				if c.Bridge == nil {
					return nil, errors.New("keep-alive bridge is not configured")
				}
				var scheduler Scheduler
				if c.Heartbeat != nil {
					scheduler = c.Heartbeat
				}
				return NewKeepAliveService(c.Bridge, KeepAlivePatch(config), scheduler,
					config.KeepAlive.NativeCallTimeout, sr.Logger), nil
			},
		},
		{
			name:    "heartbeat",
			enabled: true,
			constructor: func() (registry.Service, error) {
				if c.Heartbeat == nil {
					return nil, errors.New("heartbeat service is not configured")
				}
				return c.Heartbeat, nil
			},
		},
		{
			name:    "report",
			enabled: config.Analyzer.ReportInterval > 0,
			constructor: func() (registry.Service, error) {
				if c.Reports == nil {
					return nil, errors.New("report service is not configured")
				}
				return c.Reports, nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
