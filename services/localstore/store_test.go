package localstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "64b7f0c2a1b2c3d4e5f60718"
	bob   = "64b7f0c2a1b2c3d4e5f60719"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestProductsRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProducts(ctx, alice, []json.RawMessage{
		json.RawMessage(`{"_id":"p1","name":"Widget"}`),
	}))

	products, err := store.Products(ctx, alice)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.JSONEq(t, `{"_id":"p1","name":"Widget"}`, string(products[0]))
}

func TestProductsAreKeptPerUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProducts(ctx, alice, []json.RawMessage{json.RawMessage(`{"_id":"a"}`)}))
	require.NoError(t, store.SetProducts(ctx, bob, []json.RawMessage{json.RawMessage(`{"_id":"b1"}`), json.RawMessage(`{"_id":"b2"}`)}))

	products, err := store.Products(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	require.NoError(t, store.Clear(ctx, bob))
	products, err = store.Products(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	products, err = store.Products(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, products)

	products, err = store.Products(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.ErrorIs(t, store.SetProducts(ctx, "", nil), ErrNoOwner)
}

func TestProductsMissingOrMalformedIsEmpty(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	products, err := store.Products(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)

	require.NoError(t, mr.Set(itemKey(alice, CachedProductsKey), "{not json"))
	products, err = store.Products(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetItem(ctx, alice, CachedUserKey, []byte(`{"name":"a"}`)))
	require.NoError(t, store.SetProducts(ctx, alice, nil))
	require.NoError(t, store.Clear(ctx, alice))

	v, err := store.GetItem(ctx, alice, CachedUserKey)
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = store.GetItem(ctx, alice, CachedProductsKey)
	require.NoError(t, err)
	assert.Nil(t, v)
}
