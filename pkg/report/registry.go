package report

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// Env carries everything an adapter needs at construction time.
type Env struct {
	CountryCode string
	Country     config.CountryConfig
	ReportType  string
	Report      config.ReportConfig
	Credentials config.Credentials
	HTTP        *clients.HTTPClient
	Retry       *clients.RetryPolicy
	Logger      *zap.Logger
}

// Factory constructs an adapter from its environment.
type Factory func(env Env) (Adapter, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register adds an adapter factory under a vendor name. Vendor
// packages call this from init.
func Register(vendor string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[vendor] = factory
}

// Create instantiates the adapter registered for a vendor.
func Create(vendor string, env Env) (Adapter, error) {
	registryMu.RLock()
	factory, ok := factories[vendor]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "no adapter registered for vendor").
			WithDetail("vendor", vendor)
	}
	return factory(env)
}

// List returns the registered vendor names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
