package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelas/internal/core"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db", migrateURL("postgres://u:p@localhost:5432/db"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

// Runs against a real server only when PARCELAS_TEST_POSTGRES_URL is set.
func TestRepositoryRoundTrip(t *testing.T) {
	url := os.Getenv("PARCELAS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("PARCELAS_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	repo, err := NewRepository(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	owner := "test-" + uuid.NewString()
	respID := uuid.NewString()
	catID := uuid.NewString()
	require.NoError(t, repo.CreateResponsible(ctx, core.Responsible{ID: respID, Name: "Ana", Color: "red"}))
	t.Cleanup(func() { repo.DeleteResponsible(context.Background(), respID) })
	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: catID, OwnerID: owner, Name: "Food", Type: core.Expense}))

	now := time.Now().UTC()
	entries := []core.Entry{
		{ID: uuid.NewString(), MovementID: "m", OwnerID: owner, Name: "TV - 01/2", Amount: core.Money{Cents: 150},
			Numerator: 1, Denominator: 2, OrderDate: core.NewDate(2024, 1, 15), PaymentDate: core.NewDate(2024, 2, 1),
			Type: core.Expense, CategoryID: catID, CreatedBy: owner, UpdatedBy: owner, CreatedAt: now, UpdatedAt: now},
		{ID: uuid.NewString(), MovementID: "m", OwnerID: owner, Name: "TV - 02/2", Amount: core.Money{Cents: 151},
			Numerator: 2, Denominator: 2, OrderDate: core.NewDate(2024, 1, 15), PaymentDate: core.NewDate(2024, 3, 1),
			Type: core.Expense, CategoryID: catID, CreatedBy: owner, UpdatedBy: owner, CreatedAt: now, UpdatedAt: now},
	}
	links := []core.ResponsibleLink{{EntryID: entries[0].ID, ResponsibleID: respID}, {EntryID: entries[1].ID, ResponsibleID: respID}}
	require.NoError(t, repo.CreateEntries(ctx, entries, links))
	t.Cleanup(func() {
		for _, e := range entries {
			repo.DeleteEntry(context.Background(), owner, e.ID)
		}
	})

	got, err := repo.ListEntries(ctx, owner, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{respID}, got[0].Responsibles)

	sums, err := repo.SumByCategory(ctx, owner, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(301), sums[0].Total.Cents)

	months, err := repo.SumByPaymentPeriod(ctx, owner, core.NewDate(2024, 1, 1), core.NewDate(2025, 1, 1), core.GroupByMonth)
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, 2, months[0].Bucket)

	dates, err := repo.ListDistinctPaymentDates(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}
