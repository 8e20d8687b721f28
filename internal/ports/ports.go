// Package ports declares the storage collaborators the services depend on.
package ports

import (
	"context"

	"parcelas/internal/core"
)

// Ports for outbound adapters.
type (
	CategoryFinder interface {
		// FindCategory returns core.ErrCategoryNotFound when the category does not exist for owner.
		FindCategory(ctx context.Context, ownerID, categoryID string) (core.Category, error)
	}

	// EntryWriter persists a batch of entries and their responsible links in one transaction.
	EntryWriter interface {
		CreateEntries(ctx context.Context, entries []core.Entry, links []core.ResponsibleLink) error
	}

	// CategoryTotalsReader sums an owner's entries by (type, category) over order dates in [from, to].
	CategoryTotalsReader interface {
		SumByCategory(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategorySum, error)
	}

	// PaymentSumsReader sums an owner's entries by payment month or day over payment dates in [from, to).
	// Results are sparse: buckets without entries are omitted.
	PaymentSumsReader interface {
		SumByPaymentPeriod(ctx context.Context, ownerID string, from, to core.Date, g core.Granularity) ([]core.PeriodSum, error)
	}

	PaymentDateLister interface {
		ListDistinctPaymentDates(ctx context.Context, ownerID string) ([]core.Date, error)
	}

	CategoryLister interface {
		// ListCategories returns the owner's categories sorted by name. An empty typ means every type.
		ListCategories(ctx context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error)
	}

	CategoryStore interface {
		CategoryFinder
		CategoryLister
		CreateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, ownerID, categoryID string) error
	}

	ResponsibleStore interface {
		ListResponsibles(ctx context.Context) ([]core.Responsible, error)
		CreateResponsible(ctx context.Context, r core.Responsible) error
		DeleteResponsible(ctx context.Context, id string) error
	}

	EntryStore interface {
		EntryWriter
		// ListEntries returns entries with order date in [from, to], newest first.
		ListEntries(ctx context.Context, ownerID string, from, to core.Date) ([]core.Entry, error)
		DeleteEntry(ctx context.Context, ownerID, entryID string) error
	}

	SettingsStore interface {
		// GetSettings returns core.ErrSettingsNotFound when the owner never saved settings.
		GetSettings(ctx context.Context, ownerID string) (core.UserSettings, error)
		SaveSettings(ctx context.Context, s core.UserSettings) error
	}

	// Repository is the full set of operations a storage backend provides.
	Repository interface {
		CategoryStore
		ResponsibleStore
		EntryStore
		CategoryTotalsReader
		PaymentSumsReader
		PaymentDateLister
		SettingsStore
		Ping(ctx context.Context) error
		Close() error
	}
)
