package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs validation of the full configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateGateway(&cfg.Gateway, result)
	validateApplicationData(&cfg.ApplicationData, result)

	return result
}

func validateGateway(data *GatewayData, result *ValidationResult) {
	if strings.TrimSpace(data.Host) == "" {
		result.AddError("gateway.host", "gateway host is required")
	}

	validatePort(data.ClientPort, "gateway.client_tcp_port", result)
	validatePort(data.BackendPort, "gateway.backend_udp_port", result)
	validatePort(data.APIPort, "gateway.api_port", result)

	if data.ClientPort == data.BackendPort {
		result.AddError("gateway.ports", "client and backend ports must differ")
	}

	if strings.TrimSpace(data.MemberFile) == "" {
		result.AddError("gateway.member_file", "member directory file is required")
	}

	if data.ReplyTimeoutSec < 1 {
		result.AddWarning("gateway.reply_timeout_sec",
			"reply timeout under 1 second; a slow inventory node will look unreachable")
	}

	if len(data.Partitions) == 0 {
		result.AddWarning("gateway.partitions",
			"no partitions configured; every request will answer not-found")
	}

	seen := make(map[string]bool, len(data.Partitions))
	for i, p := range data.Partitions {
		field := fmt.Sprintf("gateway.partitions[%d]", i)
		if len(p.Name) != 1 {
			result.AddError(field+".name",
				"partition name must be a single character (the room code prefix)")
		}
		if seen[p.Name] {
			result.AddError(field+".name", fmt.Sprintf("duplicate partition %q", p.Name))
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Host) == "" {
			result.AddError(field+".host", "partition host is required")
		}
		validatePort(p.UDPPort, field+".udp_port", result)
	}
}

func validateApplicationData(data *ApplicationData, result *ValidationResult) {
	if data.MQTT.Enabled {
		if strings.TrimSpace(data.MQTT.BrokerURL) == "" {
			result.AddError("application_data.mqtt.broker_url",
				"MQTT broker URL is required when enabled")
		}
		validatePort(data.MQTT.Port, "application_data.mqtt.port", result)
	}

	if data.Audit.Enabled {
		if strings.TrimSpace(data.Audit.Path) == "" {
			result.AddError("application_data.audit.path",
				"audit database path is required when enabled")
		}
		if data.Audit.RetentionDays < 1 {
			result.AddError("application_data.audit.retention_days",
				"retention days must be at least 1")
		}
	}

	switch data.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		result.AddWarning("application_data.logging.level",
			fmt.Sprintf("unknown log level %q, falling back to info", data.Logging.Level))
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("port %d out of range 1-65535", port))
	}
}
