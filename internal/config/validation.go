package config

import (
	"fmt"
	"net/url"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate fail-fasts on configuration that could not possibly work.
// It intentionally does not require API keys: read-only deployments run
// without the generator.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.MaxTurns < 1 || c.MaxTurns > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidMaxTurns, c.MaxTurns)
	}

	if c.WorkflowBaseURL == "" {
		return ErrInvalidWorkflowURL
	}
	if u, err := url.Parse(c.WorkflowBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidWorkflowURL, c.WorkflowBaseURL)
	}

	if c.RevealText < 0 || c.RevealCode < 0 || c.RevealMermaid < 0 {
		return ErrInvalidRevealThreshold
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
