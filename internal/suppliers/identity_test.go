package suppliers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, records ...Supplier) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), nil)
	require.NoError(t, err)
	for _, r := range records {
		_, err := store.Insert(context.Background(), r)
		require.NoError(t, err)
	}
	return store
}

func TestResolveCurrentSupplierByUsername(t *testing.T) {
	rec := sampleSupplier("acme")
	rec.Username = "acme"
	store := seededStore(t, rec)

	got, err := ResolveCurrentSupplier(context.Background(), store, Hints{Username: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Username)

	_, err = ResolveCurrentSupplier(context.Background(), store, Hints{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveCurrentSupplierPrecedence(t *testing.T) {
	byUser := sampleSupplier("one")
	byUser.Username = "one"
	byEmail := sampleSupplier("two")
	byEmail.Email = "two@example.com"
	byName := sampleSupplier("three")
	store := seededStore(t, byUser, byEmail, byName)
	ctx := context.Background()

	got, err := ResolveCurrentSupplier(ctx, store, Hints{Username: "one", Email: "two@example.com", CompanyName: "three"})
	require.NoError(t, err)
	assert.Equal(t, "one", got.CompanyName)

	got, err = ResolveCurrentSupplier(ctx, store, Hints{Username: "ghost", Email: "Two@Example.com", CompanyName: "three"})
	require.NoError(t, err)
	assert.Equal(t, "two", got.CompanyName)

	got, err = ResolveCurrentSupplier(ctx, store, Hints{Username: "ghost", Email: "nobody@example.com", CompanyName: "three"})
	require.NoError(t, err)
	assert.Equal(t, "three", got.CompanyName)

	_, err = ResolveCurrentSupplier(ctx, store, Hints{CompanyName: "THREE"})
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingLookup struct{ err error }

func (f failingLookup) FindByUsername(context.Context, string) (Supplier, error) {
	return Supplier{}, f.err
}

func (f failingLookup) FindByEmail(context.Context, string) (Supplier, error) {
	return Supplier{}, f.err
}

func (f failingLookup) FindByCompanyName(context.Context, string) (Supplier, error) {
	return Supplier{}, f.err
}

func TestResolveCurrentSupplierSurfacesBackendErrors(t *testing.T) {
	boom := errors.New("backend down")
	_, err := ResolveCurrentSupplier(context.Background(), failingLookup{err: boom}, Hints{Username: "acme"})
	assert.ErrorIs(t, err, boom)
}

func TestHintsEmpty(t *testing.T) {
	assert.True(t, Hints{}.Empty())
	assert.True(t, Hints{Username: "  "}.Empty())
	assert.False(t, Hints{CompanyName: "acme"}.Empty())
}

func TestMemoryPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewMemoryPending(time.Minute)
	p.now = func() time.Time { return now }

	require.NoError(t, p.Put(ctx, "tok", "sup-1"))
	id, err := p.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "sup-1", id)

	now = now.Add(2 * time.Minute)
	_, err = p.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrPendingNotFound)

	require.NoError(t, p.Put(ctx, "tok2", "sup-2"))
	require.NoError(t, p.Delete(ctx, "tok2"))
	_, err = p.Get(ctx, "tok2")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}
