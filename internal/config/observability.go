package config

import (
	"encoding/json"
	"fmt"
)

// ObservabilityConfig configures OTLP trace export.
type ObservabilityConfig struct {
	// Enabled turns tracing on. Off by default so local runs need no
	// collector.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// APIKey authenticates against hosted collectors, if any.
	APIKey string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON

	// Environment tags exported spans (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`

	// ServiceName identifies this service in traces.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// MarshalJSON masks the API key.
func (o ObservabilityConfig) MarshalJSON() ([]byte, error) {
	type alias ObservabilityConfig
	a := alias(o)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal observability config: %w", err)
	}
	return data, nil
}
