// Package stub implements the degenerate provider used when no backup-tool
// integration is available for the backend, such as the host's default
// embedded database. Backup operations report UnsupportedOperation rather
// than silently succeeding so callers can tell "not implemented" apart from
// "succeeded".
package stub

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/supporttools/JellyGuard/pkg/config"
	"github.com/supporttools/JellyGuard/pkg/dberrors"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/common"
	"github.com/supporttools/JellyGuard/pkg/dbproviders/options"
)

const backendName = "embedded"

// Provider implements common.Provider for the embedded backend
type Provider struct{}

// Name returns the provider name
func (p *Provider) Name() string {
	return backendName
}

// Initialise accepts any option bag; the embedded backend needs no
// connection configuration
func (p *Provider) Initialise(opts options.Bag, cfg *config.AppConfig) error {
	return nil
}

// OnModelCreating is a no-op kept to satisfy the provider contract
func (p *Provider) OnModelCreating(db *gorm.DB) error {
	return nil
}

// ConfigureConventions is a no-op kept to satisfy the provider contract
func (p *Provider) ConfigureConventions(cfg *gorm.Config) error {
	return nil
}

// RunScheduledOptimisation is a no-op kept to satisfy the provider contract
func (p *Provider) RunScheduledOptimisation(ctx context.Context) error {
	return nil
}

// RunShutdownTask is a no-op kept to satisfy the provider contract
func (p *Provider) RunShutdownTask(ctx context.Context) error {
	return nil
}

// CreateBackup is not available for the embedded backend
func (p *Provider) CreateBackup(ctx context.Context) (string, error) {
	return "", &dberrors.UnsupportedOperation{Op: "CreateBackup", Backend: backendName}
}

// RestoreBackup is not available for the embedded backend
func (p *Provider) RestoreBackup(ctx context.Context, identifier string) error {
	return &dberrors.UnsupportedOperation{Op: "RestoreBackup", Backend: backendName}
}

// DeleteBackup is not available for the embedded backend
func (p *Provider) DeleteBackup(ctx context.Context, identifier string) error {
	return &dberrors.UnsupportedOperation{Op: "DeleteBackup", Backend: backendName}
}

// PurgeTables empties the named tables. The embedded engine has no
// cascading truncate, so each table is cleared with a plain delete.
func (p *Provider) PurgeTables(ctx context.Context, db *gorm.DB, tables []string) error {
	statements := make([]string, 0, len(tables))
	for _, table := range tables {
		statements = append(statements, fmt.Sprintf("DELETE FROM \"%s\";", table))
	}

	batch := strings.Join(statements, "\n")
	if batch == "" {
		return nil
	}

	if err := db.WithContext(ctx).Exec(batch).Error; err != nil {
		return &dberrors.QueryExecutionError{Batch: batch, Err: err}
	}

	return nil
}

// Factory creates embedded database providers
type Factory struct{}

// Create returns a new Provider instance
func (f *Factory) Create() (common.Provider, error) {
	return &Provider{}, nil
}

func init() {
	common.RegisterProvider(backendName, &Factory{})
}
