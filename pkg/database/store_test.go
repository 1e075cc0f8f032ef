package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock that advances one millisecond per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Millisecond)
		return current
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithClock(stepClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))))
}

func TestNew_FixedCollectionsEmpty(t *testing.T) {
	s := New()
	for _, name := range Collections() {
		records, err := s.GetAll(name)
		require.NoError(t, err, name)
		assert.Empty(t, records, name)
	}
	assert.Equal(t, []string{"users", "sessions", "listings", "data"}, s.CollectionNames())
}

func TestUnknownCollection(t *testing.T) {
	s := New()

	ops := map[string]func() error{
		"GetAll":  func() error { _, err := s.GetAll("orders"); return err },
		"GetByID": func() error { _, err := s.GetByID("orders", "1"); return err },
		"Create":  func() error { _, err := s.Create("orders", Record{}); return err },
		"Update":  func() error { _, err := s.Update("orders", "1", Record{}); return err },
		"Delete":  func() error { _, err := s.Delete("orders", "1"); return err },
		"Find":    func() error { _, err := s.Find("orders", nil); return err },
		"Insert":  func() error { _, err := s.Insert("orders", Record{"id": "1"}); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownCollection))

			var ce *CollectionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "orders", ce.Name)
			assert.Equal(t, 400, ce.StatusCode())
		})
	}
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Create(CollectionUsers, Record{
		"username":   "alice",
		"id":         "client-id",
		"created_at": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "client-id", rec.ID())
	assert.Len(t, rec.ID(), 36)
	assert.Equal(t, "2024-01-01T10:00:00.001000Z", rec.CreatedAt())
	assert.Equal(t, rec.CreatedAt(), rec.UpdatedAt())
	assert.Equal(t, "alice", rec["username"])

	got, err := s.GetByID(CollectionUsers, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreate_UniqueIDs(t *testing.T) {
	s := New()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		rec, err := s.Create(CollectionData, Record{"n": i})
		require.NoError(t, err)
		require.False(t, seen[rec.ID()], "duplicate id %s", rec.ID())
		seen[rec.ID()] = true
	}
}

func TestCreate_DoesNotAliasInput(t *testing.T) {
	s := New()
	input := Record{"tags": []any{"a"}, "nested": map[string]any{"k": "v"}}

	rec, err := s.Create(CollectionData, input)
	require.NoError(t, err)

	input["tags"].([]any)[0] = "mutated"
	input["nested"].(map[string]any)["k"] = "mutated"
	input["extra"] = true

	got, err := s.GetByID(CollectionData, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, got["nested"])
	assert.NotContains(t, got, "extra")
	_, hasID := input["id"]
	assert.False(t, hasID)
}

func TestReads_ReturnDefensiveCopies(t *testing.T) {
	s := New()
	rec, err := s.Create(CollectionData, Record{"nested": map[string]any{"k": "v"}})
	require.NoError(t, err)

	all, err := s.GetAll(CollectionData)
	require.NoError(t, err)
	all[0]["nested"].(map[string]any)["k"] = "changed"
	all[0]["id"] = "hijacked"

	one, err := s.GetByID(CollectionData, rec.ID())
	require.NoError(t, err)
	one["nested"].(map[string]any)["k"] = "changed"

	found, err := s.Find(CollectionData, nil)
	require.NoError(t, err)
	found[0]["new"] = 1

	got, err := s.GetByID(CollectionData, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, got["nested"])
	assert.NotContains(t, got, "new")
}

func TestGetByID_NotFound(t *testing.T) {
	s := New()
	rec, err := s.GetByID(CollectionUsers, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdate_PartialMerge(t *testing.T) {
	s := newTestStore(t)
	created, err := s.Create(CollectionUsers, Record{
		"username":  "alice",
		"email":     "alice@example.com",
		"is_active": true,
	})
	require.NoError(t, err)

	updated, err := s.Update(CollectionUsers, created.ID(), Record{
		"is_active":  false,
		"id":         "other",
		"created_at": "2000-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, created.CreatedAt(), updated.CreatedAt())
	assert.Equal(t, "alice", updated["username"])
	assert.Equal(t, "alice@example.com", updated["email"])
	assert.Equal(t, false, updated["is_active"])
	assert.Greater(t, updated.UpdatedAt(), created.UpdatedAt())
	assert.GreaterOrEqual(t, updated.UpdatedAt(), updated.CreatedAt())
}

func TestUpdate_ClockBehindCreatedAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := New(WithClock(clock))

	created, err := s.Create(CollectionData, Record{"v": 1})
	require.NoError(t, err)

	now = now.Add(-time.Hour)
	updated, err := s.Update(CollectionData, created.ID(), Record{"v": 2})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt(), updated.UpdatedAt())
}

func TestUpdate_NotFound(t *testing.T) {
	s := New()
	rec, err := s.Update(CollectionUsers, "missing", Record{"x": 1})
	require.NoError(t, err)
	assert.Nil(t, rec)

	all, err := s.GetAll(CollectionUsers)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDelete_IdempotentFalse(t *testing.T) {
	s := New()
	a, _ := s.Create(CollectionData, Record{"n": 1})
	b, _ := s.Create(CollectionData, Record{"n": 2})
	c, _ := s.Create(CollectionData, Record{"n": 3})

	deleted, err := s.Delete(CollectionData, b.ID())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(CollectionData, b.ID())
	require.NoError(t, err)
	assert.False(t, deleted)

	all, err := s.GetAll(CollectionData)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID(), all[0].ID())
	assert.Equal(t, c.ID(), all[1].ID())
}

func TestFind(t *testing.T) {
	s := New()
	for i, city := range []string{"London", "Leeds", "London", "York"} {
		_, err := s.Create(CollectionListings, Record{
			"order":    i,
			"bedrooms": float64(i % 2),
			"address_details": map[string]any{
				"city": city,
			},
			"photos": []any{map[string]any{"mime_type": "image/png"}},
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		filters map[string]any
		want    []int
	}{
		{"empty filter returns all in order", nil, []int{0, 1, 2, 3}},
		{"int matches float", map[string]any{"bedrooms": 1}, []int{1, 3}},
		{"conjunction", map[string]any{"bedrooms": 0, "order": 2}, []int{2}},
		{"missing field", map[string]any{"nope": "x"}, []int{}},
		{"jsonpath nested", map[string]any{"$.address_details.city": "London"}, []int{0, 2}},
		{"jsonpath wildcard", map[string]any{"$.photos[*].mime_type": "image/png"}, []int{0, 1, 2, 3}},
		{"jsonpath no match", map[string]any{"$.address_details.city": "Bath"}, []int{}},
		{"any of candidates", map[string]any{"order": AnyOf{"2", 2}}, []int{2}},
		{"any of no candidate", map[string]any{"order": AnyOf{"x", 9}}, []int{}},
		{"absent field reads as null", map[string]any{"nope": nil}, []int{0, 1, 2, 3}},
		{"present field is not null", map[string]any{"bedrooms": nil}, []int{}},
		{"jsonpath any of", map[string]any{"$.address_details.city": AnyOf{"York", "Leeds"}}, []int{1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(CollectionListings, tt.filters)
			require.NoError(t, err)

			orders := make([]int, 0, len(got))
			for _, rec := range got {
				orders = append(orders, rec["order"].(int))
			}
			assert.Equal(t, tt.want, orders)
		})
	}
}

func TestFind_InvalidJSONPath(t *testing.T) {
	s := New()
	_, err := s.Find(CollectionListings, map[string]any{"$.a[": "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestInsert(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Insert(CollectionListings, Record{"id": 187, "city": "London"})
	require.NoError(t, err)
	assert.Equal(t, "187", rec.ID())
	assert.Equal(t, rec.CreatedAt(), rec.UpdatedAt())
	assert.NotEmpty(t, rec.CreatedAt())

	_, err = s.Insert(CollectionListings, Record{"id": "187"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	got, err := s.GetByID(CollectionListings, "187")
	require.NoError(t, err)
	assert.Equal(t, "London", got["city"])
}

func TestReset(t *testing.T) {
	s := New()
	for _, name := range Collections() {
		_, err := s.Create(name, Record{"x": 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 4, s.Status().TotalRecords)

	s.Reset()

	for _, name := range Collections() {
		all, err := s.GetAll(name)
		require.NoError(t, err)
		assert.Empty(t, all)
	}
	assert.Equal(t, 0, s.Status().TotalRecords)
}

func TestStatus(t *testing.T) {
	s := New()
	_, _ = s.Create(CollectionUsers, Record{})
	_, _ = s.Create(CollectionUsers, Record{})
	_, _ = s.Create(CollectionData, Record{})

	st := s.Status()
	assert.Equal(t, Collections(), st.Collections)
	assert.Equal(t, 3, st.TotalRecords)
	assert.Equal(t, map[string]int{"users": 2, "sessions": 0, "listings": 0, "data": 1}, st.RecordCounts)
}

func TestExportImport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.Create(CollectionUsers, Record{"username": "alice"})
	_, _ = s.Insert(CollectionListings, Record{"id": "187"})

	snap := s.ExportData()
	snap[CollectionUsers][0]["username"] = "mutated"

	other := New()
	require.NoError(t, other.ImportData(s.ExportData()))

	got, err := other.GetByID(CollectionUsers, user.ID())
	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Equal(t, s.Status(), other.Status())
}

func TestImportData_Invalid(t *testing.T) {
	s := New()
	original, _ := s.Create(CollectionUsers, Record{"username": "keep"})

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"unknown collection", Snapshot{"orders": {}}},
		{"missing id", Snapshot{"users": {{"created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"}}}},
		{"bad timestamp", Snapshot{"users": {{"id": "1", "created_at": "yesterday", "updated_at": "2024-01-01T00:00:00Z"}}}},
		{"duplicate id", Snapshot{"users": {
			{"id": "1", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"},
			{"id": "1", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ImportData(tt.snap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSnapshot))

			got, _ := s.GetByID(CollectionUsers, original.ID())
			assert.NotNil(t, got, "store must be unchanged after a failed import")
		})
	}
}

func TestImportData_MissingCollectionsBecomeEmpty(t *testing.T) {
	s := New()
	_, _ = s.Create(CollectionData, Record{"x": 1})

	require.NoError(t, s.ImportData(Snapshot{"users": {}}))
	assert.Zero(t, s.Status().RecordCounts[CollectionData])
}

func TestSnapshotFiles(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			s := newTestStore(t)
			_, _ = s.Create(CollectionUsers, Record{"username": "alice", "is_active": true})
			_, _ = s.Insert(CollectionListings, Record{"id": "187", "bedrooms": 2})

			path := filepath.Join(t.TempDir(), "nested", "snapshot"+ext)
			require.NoError(t, s.SaveSnapshot(path))

			loaded := New()
			require.NoError(t, loaded.LoadSnapshot(path))
			assert.Equal(t, s.Status(), loaded.Status())

			listing, err := loaded.GetByID(CollectionListings, "187")
			require.NoError(t, err)
			require.NotNil(t, listing)
			assert.True(t, valuesEqual(2, listing["bedrooms"]))
		})
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	s := New()
	err := s.LoadSnapshot(filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec, err := s.Create(CollectionData, Record{"g": g, "i": i})
				if err != nil {
					t.Error(err)
					return
				}
				_, _ = s.Update(CollectionData, rec.ID(), Record{"touched": true})
				_, _ = s.Find(CollectionData, map[string]any{"g": g})
				if i%2 == 0 {
					_, _ = s.Delete(CollectionData, rec.ID())
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8*25, s.Status().RecordCounts[CollectionData])
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-05T06:08:09.123456Z", FormatTime(ts))

	parsed, err := ParseTime(FormatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Truncate(time.Microsecond).Equal(parsed))
}

func ExampleStore_Create() {
	s := New(WithIDGenerator(func() string { return "user-1" }))
	rec, _ := s.Create(CollectionUsers, Record{"username": "alice"})
	fmt.Println(rec.ID(), rec["username"])
	// Output: user-1 alice
}
