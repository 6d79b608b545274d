// Package commands provides slash commands for the prodsync chat surface.
// Commands are registered globally via init() for use by agentic-dispatch.
package commands

import (
	"sync"

	agenticdispatch "github.com/c360studio/semstreams/processor/agentic-dispatch"

	"github.com/mediaops/prodsync/extract"
	"github.com/mediaops/prodsync/reconcile"
	"github.com/mediaops/prodsync/watch"
)

// Services holds the live dependencies commands execute against.
// Set once at application startup before the dispatcher runs.
type Services struct {
	// Rules is the watch-rule registry shared with the change-watcher.
	Rules *watch.Registry

	// Extractor turns chat text into candidate property patches.
	Extractor extract.Extractor

	// Mapper reconciles patches against the board schema.
	Mapper *reconcile.Mapper

	// Mutator applies reconciled properties to the board.
	Mutator *reconcile.Mutator

	// CollectionID is the project collection updates apply to.
	CollectionID string
}

var (
	servicesMu sync.RWMutex
	services   *Services
)

// SetServices wires command dependencies. Should be called early in
// application startup before commands execute.
func SetServices(s *Services) {
	servicesMu.Lock()
	services = s
	servicesMu.Unlock()
}

// getServices returns the wired services, or false when startup has not
// configured them yet.
func getServices() (*Services, bool) {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	return services, services != nil
}

func init() {
	agenticdispatch.RegisterCommand("watch", &WatchCommand{})
	agenticdispatch.RegisterCommand("update", &UpdateCommand{})
	agenticdispatch.RegisterCommand("help", &HelpCommand{})
}
