package changewatcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the change-watcher component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "change-watcher",
		Factory:     NewComponent,
		Schema:      watcherSchema,
		Type:        "processor",
		Protocol:    "watch",
		Domain:      "board",
		Description: "Polls board watch rules and publishes one-time notifications",
		Version:     "0.1.0",
	})
}
