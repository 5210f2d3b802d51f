package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeSweeper runs the periodic session and suspension sweeper.
	ServiceModeSweeper ServiceMode = "sweeper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeSweeper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeSweeper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service %q (valid options: %v)", serviceName, ValidServiceModes())
		}
	}

	if len(services) == 0 {
		return services, errors.New("at least one service must be specified")
	}

	return services, nil
}

// SweeperConfig contains session sweeper configuration.
type SweeperConfig struct {
	// Interval is the sweeper tick interval.
	Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	// Enforce a minimum interval to prevent excessive database load
	if s.Interval < 30*time.Second {
		s.Interval = 30 * time.Second
	}
}

// IsHTTPEnabled returns true if the HTTP server is enabled.
func IsHTTPEnabled(services map[ServiceMode]bool) bool {
	return services[ServiceModeHTTP]
}

// IsSweeperEnabled returns true if the sweeper service is enabled.
func IsSweeperEnabled(services map[ServiceMode]bool) bool {
	return services[ServiceModeSweeper]
}
