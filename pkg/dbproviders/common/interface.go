// Package common provides shared types and interfaces for database providers
package common

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/options"
)

// Provider represents a pluggable database backend for the media server host
type Provider interface {
	// Name returns the provider name (e.g., "postgresql", "embedded")
	Name() string

	// Initialise translates the generic option bag into a ready-to-use
	// connection configuration. It must be called before any backup,
	// restore or purge operation.
	Initialise(opts options.Bag, cfg *config.AppConfig) error

	// OnModelCreating lets the provider customize the host data model.
	OnModelCreating(db *gorm.DB) error

	// ConfigureConventions lets the provider adjust ORM conventions.
	ConfigureConventions(cfg *gorm.Config) error

	// RunScheduledOptimisation performs periodic engine maintenance.
	RunScheduledOptimisation(ctx context.Context) error

	// RunShutdownTask runs cleanup when the host shuts down.
	RunShutdownTask(ctx context.Context) error

	// CreateBackup creates a database snapshot and returns its identifier.
	CreateBackup(ctx context.Context) (string, error)

	// RestoreBackup restores the snapshot named by identifier.
	RestoreBackup(ctx context.Context, identifier string) error

	// DeleteBackup removes the snapshot named by identifier.
	DeleteBackup(ctx context.Context, identifier string) error

	// PurgeTables empties the named tables, cascading to dependent rows.
	// Table names are trusted caller input and are not escaped beyond
	// simple quoting.
	PurgeTables(ctx context.Context, db *gorm.DB, tables []string) error
}

// ProviderFactory creates a database provider from configuration
type ProviderFactory interface {
	// Create returns a new Provider instance
	Create() (Provider, error)
}

// providerFactories stores the registered provider factories
var providerFactories = make(map[string]ProviderFactory)

// RegisterProvider registers a provider factory with the given name
func RegisterProvider(name string, factory ProviderFactory) {
	providerFactories[name] = factory
}

// GetProvider creates a provider instance by name
func GetProvider(name string) (Provider, error) {
	factory, ok := providerFactories[name]
	if !ok {
		return nil, fmt.Errorf("no provider registered with name: %s", name)
	}
	return factory.Create()
}

// ProviderNames returns the names of all registered providers
func ProviderNames() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	return names
}
