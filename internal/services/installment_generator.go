package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"parcelas/internal/core"
	"parcelas/internal/ports"
)

// InstallmentGenerator turns one movement request into its persisted installment entries.
type InstallmentGenerator struct {
	categories ports.CategoryFinder
	entries    ports.EntryWriter
	newID      func() string
	now        func() time.Time
}

func NewInstallmentGenerator(categories ports.CategoryFinder, entries ports.EntryWriter) *InstallmentGenerator {
	return &InstallmentGenerator{
		categories: categories,
		entries:    entries,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Generate validates req, resolves its category for ownerID and stores
// Denominator entries with their responsible links in one batch.
func (g *InstallmentGenerator) Generate(ctx context.Context, req core.MovementRequest, ownerID string) ([]core.Entry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.NewValidationError("owner", "must not be empty")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := g.categories.FindCategory(ctx, ownerID, req.CategoryID); err != nil {
		return nil, core.WrapStorage("find category", err)
	}

	entries, links, err := buildInstallments(req, ownerID, g.newID(), g.newID, g.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := g.entries.CreateEntries(ctx, entries, links); err != nil {
		return nil, core.WrapStorage("create entries", err)
	}
	return entries, nil
}

// buildInstallments is the pure part of generation: shares, names, dates and links.
func buildInstallments(req core.MovementRequest, ownerID, movementID string, newID func() string, now time.Time) ([]core.Entry, []core.ResponsibleLink, error) {
	n := req.Denominator
	shares, err := req.Amount.Split(n)
	if err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(req.Name)
	entries := make([]core.Entry, n)
	links := make([]core.ResponsibleLink, 0, n*len(req.Responsibles))
	for i := 1; i <= n; i++ {
		id := newID()
		entries[i-1] = core.Entry{
			ID:           id,
			MovementID:   movementID,
			OwnerID:      ownerID,
			Name:         fmt.Sprintf("%s - %02d/%d", name, i, n),
			Amount:       shares[i-1],
			Numerator:    i,
			Denominator:  n,
			Description:  req.Description,
			OrderDate:    req.OrderDate,
			PaymentDate:  paymentDate(req, i),
			Type:         req.Type,
			Card:         req.Card,
			Bank:         req.Bank,
			CategoryID:   req.CategoryID,
			Responsibles: append([]string(nil), req.Responsibles...),
			CreatedBy:    ownerID,
			UpdatedBy:    ownerID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, r := range req.Responsibles {
			links = append(links, core.ResponsibleLink{EntryID: id, ResponsibleID: r})
		}
	}
	return entries, links, nil
}

// paymentDate returns the due date of installment i (1-based).
func paymentDate(req core.MovementRequest, i int) core.Date {
	switch {
	case req.Type == core.Income:
		return req.OrderDate
	case !req.PaymentDate.IsEmpty():
		return req.PaymentDate
	default:
		return req.OrderDate.FirstOfMonthAfter(i)
	}
}
