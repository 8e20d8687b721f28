// Package memory is an in-process implementation of every storage port.
// It backs the memory data backend and the service tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"parcelas/internal/core"
)

type Store struct {
	mu           sync.Mutex
	categories   map[string]core.Category
	responsibles map[string]core.Responsible
	entries      []core.Entry
	links        []core.ResponsibleLink
	settings     map[string]core.UserSettings
}

func New() *Store {
	return &Store{
		categories:   map[string]core.Category{},
		responsibles: map[string]core.Responsible{},
		settings:     map[string]core.UserSettings{},
	}
}

// NewFromFiles seeds the shared responsibles from base/seed_responsibles.txt,
// one "name" or "name,color" per line.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_responsibles.txt")) {
		name, color, _ := strings.Cut(line, ",")
		r := core.Responsible{ID: uuid.NewString(), Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
		if r.Validate() != nil {
			continue
		}
		s.responsibles[r.ID] = r
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) FindCategory(_ context.Context, ownerID, categoryID string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.OwnerID != ownerID {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if c.OwnerID != ownerID || (typ != "" && c.Type != typ) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.categories[c.ID]; exists {
		return fmt.Errorf("category %s already exists", c.ID)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, ownerID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.OwnerID != ownerID {
		return core.ErrCategoryNotFound
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *Store) ListResponsibles(context.Context) ([]core.Responsible, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Responsible, 0, len(s.responsibles))
	for _, r := range s.responsibles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateResponsible(_ context.Context, r core.Responsible) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.responsibles[r.ID]; exists {
		return fmt.Errorf("responsible %s already exists", r.ID)
	}
	s.responsibles[r.ID] = r
	return nil
}

// DeleteResponsible removes the responsible and every link pointing at it.
func (s *Store) DeleteResponsible(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responsibles[id]; !ok {
		return core.ErrResponsibleNotFound
	}
	delete(s.responsibles, id)
	s.links = filterLinks(s.links, func(l core.ResponsibleLink) bool { return l.ResponsibleID != id })
	return nil
}

// CreateEntries stores the batch only if every entry and link is acceptable.
func (s *Store) CreateEntries(_ context.Context, entries []core.Entry, links []core.ResponsibleLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{}, len(entries))
	for _, e := range s.entries {
		ids[e.ID] = struct{}{}
	}
	batch := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("entry %s already exists", e.ID)
		}
		if _, dup := batch[e.ID]; dup {
			return fmt.Errorf("entry %s repeated in batch", e.ID)
		}
		batch[e.ID] = struct{}{}
	}
	for _, l := range links {
		if _, ok := batch[l.EntryID]; !ok {
			return fmt.Errorf("link references entry %s outside the batch", l.EntryID)
		}
		if _, ok := s.responsibles[l.ResponsibleID]; !ok {
			return fmt.Errorf("link references unknown responsible %s", l.ResponsibleID)
		}
	}

	for _, e := range entries {
		e.Responsibles = nil
		s.entries = append(s.entries, e)
	}
	s.links = append(s.links, links...)
	return nil
}

func (s *Store) ListEntries(_ context.Context, ownerID string, from, to core.Date) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Entry{}
	for _, e := range s.entries {
		if e.OwnerID != ownerID || e.OrderDate.Before(from.Time) || e.OrderDate.After(to.Time) {
			continue
		}
		e.Responsibles = s.responsiblesOf(e.ID)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OrderDate.Equal(b.OrderDate.Time) {
			return a.OrderDate.After(b.OrderDate.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Numerator < b.Numerator
	})
	return out, nil
}

func (s *Store) DeleteEntry(_ context.Context, ownerID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID != entryID || e.OwnerID != ownerID {
			continue
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		s.links = filterLinks(s.links, func(l core.ResponsibleLink) bool { return l.EntryID != entryID })
		return nil
	}
	return core.ErrEntryNotFound
}

func (s *Store) SumByCategory(_ context.Context, ownerID string, from, to core.Date) ([]core.CategorySum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		typ core.TransactionType
		cat string
	}
	totals := map[key]int64{}
	for _, e := range s.entries {
		if e.OwnerID != ownerID || e.OrderDate.Before(from.Time) || e.OrderDate.After(to.Time) {
			continue
		}
		totals[key{e.Type, e.CategoryID}] += e.Amount.Cents
	}
	out := make([]core.CategorySum, 0, len(totals))
	for k, v := range totals {
		out = append(out, core.CategorySum{Type: k.typ, CategoryID: k.cat, Total: core.Money{Cents: v}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *Store) SumByPaymentPeriod(_ context.Context, ownerID string, from, to core.Date, g core.Granularity) ([]core.PeriodSum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets := map[int]*core.PeriodSum{}
	for _, e := range s.entries {
		if e.OwnerID != ownerID || e.PaymentDate.IsEmpty() {
			continue
		}
		if e.PaymentDate.Before(from.Time) || !e.PaymentDate.Before(to.Time) {
			continue
		}
		b := e.PaymentDate.Month()
		if g == core.GroupByDay {
			b = e.PaymentDate.Day()
		}
		ps, ok := buckets[b]
		if !ok {
			ps = &core.PeriodSum{Bucket: b}
			buckets[b] = ps
		}
		switch e.Type {
		case core.Income:
			ps.Income = ps.Income.Add(e.Amount)
		case core.Expense:
			ps.Expense = ps.Expense.Add(e.Amount)
		}
	}
	out := make([]core.PeriodSum, 0, len(buckets))
	for _, ps := range buckets {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}

func (s *Store) ListDistinctPaymentDates(_ context.Context, ownerID string) ([]core.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]core.Date{}
	for _, e := range s.entries {
		if e.OwnerID != ownerID || e.PaymentDate.IsEmpty() {
			continue
		}
		seen[e.PaymentDate.String()] = e.PaymentDate
	}
	out := make([]core.Date, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out, nil
}

func (s *Store) GetSettings(_ context.Context, ownerID string) (core.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.settings[ownerID]
	if !ok {
		return core.UserSettings{}, core.ErrSettingsNotFound
	}
	return us, nil
}

func (s *Store) SaveSettings(_ context.Context, us core.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[us.OwnerID] = us
	return nil
}

func (s *Store) responsiblesOf(entryID string) []string {
	out := []string{}
	for _, l := range s.links {
		if l.EntryID == entryID {
			out = append(out, l.ResponsibleID)
		}
	}
	sort.Strings(out)
	return out
}

func filterLinks(in []core.ResponsibleLink, keep func(core.ResponsibleLink) bool) []core.ResponsibleLink {
	out := in[:0]
	for _, l := range in {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
