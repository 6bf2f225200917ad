package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkaroly/webshop-checkout/internal/domain/catalog"
	"github.com/mkaroly/webshop-checkout/internal/domain/order"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProduct(t *testing.T, store *Store, id int64, stock int) {
	t.Helper()
	require.NoError(t, store.Products().Save(context.Background(), &catalog.Product{
		ID: id, Name: "Widget", Description: "A widget", SerialNumber: "SN-1",
		Price: 100, Stock: stock, ImageURL: "https://img.example.com/1",
	}))
}

func TestProductSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 1, 5)

	got, err := store.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, "SN-1", got.SerialNumber)
	assert.Equal(t, int64(100), got.Price)
	assert.Equal(t, 5, got.Stock)
	assert.False(t, got.UpdatedAt.IsZero())

	got.Stock = 3
	require.NoError(t, store.Products().Save(ctx, got))

	again, err := store.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Stock)
}

func TestProductGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Products().Get(context.Background(), 99)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestProductInTxCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 1, 5)

	err := store.Products().InTx(ctx, func(tx catalog.Repository) error {
		p, err := tx.Get(ctx, 1)
		if err != nil {
			return err
		}
		if err := p.Deduct(2); err != nil {
			return err
		}
		return tx.Save(ctx, p)
	})
	require.NoError(t, err)

	got, err := store.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestProductInTxRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedProduct(t, store, 1, 5)

	boom := errors.New("boom")
	err := store.Products().InTx(ctx, func(tx catalog.Repository) error {
		p, err := tx.Get(ctx, 1)
		if err != nil {
			return err
		}
		p.Stock = 0
		if err := tx.Save(ctx, p); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Products().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rootID, err := store.Products().SaveCategory(ctx, catalog.Category{Name: "Electronics"})
	require.NoError(t, err)
	_, err = store.Products().SaveCategory(ctx, catalog.Category{Name: "Phones", ParentID: rootID})
	require.NoError(t, err)

	categories, err := store.Products().ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Electronics", categories[0].Name)
	assert.Equal(t, rootID, categories[1].ParentID)
}

func sampleOrder(id, paymentID string) *order.Order {
	return &order.Order{
		ID:        id,
		Status:    order.StatusProcessing,
		OrderDate: time.Now().UTC(),
		PaymentID: paymentID,
		ShippingAddress: order.ShippingAddress{
			Name: "Kiss Anna", Email: "anna@example.com", PhoneNumber: "+36301234567",
			ZipCode: "1111", Country: "HU", City: "Budapest", Street: "Fo utca 1",
		},
		Invoice: order.Invoice{
			CustomerName: "Kiss Anna", CustomerEmail: "anna@example.com",
			CustomerZipCode: "1111", CustomerCountry: "HU", CustomerCity: "Budapest",
			CustomerStreet: "Fo utca 1", CreationDate: time.Now().UTC(), PaymentMethod: "Barion",
		},
		Items: []order.Item{
			{ProductID: 1, Amount: 2, OrderedPrice: 100},
			{ProductID: 2, Amount: 1, OrderedPrice: 250},
		},
	}
}

func TestOrderCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, sampleOrder("O1", "P1")))

	got, err := store.Orders().GetByPaymentID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "O1", got.ID)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, "Kiss Anna", got.ShippingAddress.Name)
	assert.Equal(t, "Barion", got.Invoice.PaymentMethod)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(100), got.Items[0].OrderedPrice)
	assert.Equal(t, 1, got.Items[1].Amount)
}

func TestOrderDuplicatePaymentID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Orders().Create(ctx, sampleOrder("O1", "P1")))

	err := store.Orders().Create(ctx, sampleOrder("O2", "P1"))
	require.ErrorIs(t, err, order.ErrDuplicatePayment)

	// the second order must not leave partial rows behind
	got, err := store.Orders().GetByPaymentID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "O1", got.ID)
}

func TestOrderExistsByPaymentID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Orders().ExistsByPaymentID(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Orders().Create(ctx, sampleOrder("O1", "P1")))

	ok, err = store.Orders().ExistsByPaymentID(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOrderMissingPaymentID(t *testing.T) {
	store := newTestStore(t)

	o := sampleOrder("O1", "")
	err := store.Orders().Create(context.Background(), o)
	assert.ErrorIs(t, err, order.ErrPaymentIDMissing)

	_, err = store.Orders().GetByPaymentID(context.Background(), "nope")
	assert.ErrorIs(t, err, order.ErrNotFound)
}
