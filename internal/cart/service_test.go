package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/dbtest"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type recordingTracker struct {
	calls []enums.BehaviorAction
	err   error
}

func (r *recordingTracker) Track(_ context.Context, _, _ uuid.UUID, action enums.BehaviorAction) error {
	r.calls = append(r.calls, action)
	return r.err
}

type fixture struct {
	client  *db.Client
	svc     Service
	tracker *recordingTracker
	userID  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.New(t)
	tracker := &recordingTracker{}
	svc, err := NewService(NewRepository(client.DB()), products.NewRepository(client.DB()), client, tracker, logger.Nop())
	require.NoError(t, err)
	user := dbtest.MustCreateUser(t, client.DB())
	return fixture{client: client, svc: svc, tracker: tracker, userID: user.ID}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestGetEmptyCart(t *testing.T) {
	f := newFixture(t)
	cart, err := f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Equal(t, 0, cart.TotalItems)
	require.True(t, cart.TotalPrice.IsZero())
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Price: "12.50", Stock: 5})

	_, err := f.svc.AddItem(ctx, f.userID, reel.ID, 2)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.userID, reel.ID, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)
	require.Equal(t, 3, cart.TotalItems)
	require.True(t, cart.TotalPrice.Equal(decimal.RequireFromString("37.50")))
	require.Equal(t, []enums.BehaviorAction{enums.BehaviorCart, enums.BehaviorCart}, f.tracker.calls)
}

func TestAddItemRejectsQuantityOverStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Title: "Stradic 2500", Stock: 5})

	_, err := f.svc.AddItem(ctx, f.userID, reel.ID, 6)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	require.Equal(t, "Stradic 2500", details["product"])
	require.Equal(t, 5, details["available"])

	cart, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Empty(t, f.tracker.calls)
}

func TestAddItemRejectsSummedQuantityOverStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})

	_, err := f.svc.AddItem(ctx, f.userID, reel.ID, 4)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.userID, reel.ID, 2)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cart, err := f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Equal(t, 4, cart.Items[0].Quantity)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})
	_, err := f.svc.AddItem(context.Background(), f.userID, reel.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemUnknownOrInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5, Inactive: true})

	_, err := f.svc.AddItem(ctx, f.userID, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.AddItem(ctx, f.userID, inactive.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddItemIgnoresTrackerFailure(t *testing.T) {
	f := newFixture(t)
	f.tracker.err = errors.New("analytics down")
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})

	cart, err := f.svc.AddItem(context.Background(), f.userID, reel.ID, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
}

func TestUpdateItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})
	_, err := f.svc.AddItem(ctx, f.userID, reel.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.UpdateItem(ctx, f.userID, reel.ID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, cart.Items[0].Quantity)

	_, err = f.svc.UpdateItem(ctx, f.userID, reel.ID, 9)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cart, err = f.svc.UpdateItem(ctx, f.userID, reel.ID, 0)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	_, err = f.svc.UpdateItem(ctx, f.userID, reel.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateItemRemovingAbsentLineIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})
	rod := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})
	_, err := f.svc.AddItem(ctx, f.userID, reel.ID, 2)
	require.NoError(t, err)

	for _, qty := range []int{0, -3} {
		cart, err := f.svc.UpdateItem(ctx, f.userID, rod.ID, qty)
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		require.Equal(t, reel.ID, cart.Items[0].ProductID)
		require.Equal(t, 2, cart.Items[0].Quantity)
	}
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reel := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})
	rod := dbtest.MustCreateProduct(t, f.client.DB(), dbtest.ProductSpec{Stock: 5})

	// nothing to remove yet
	_, err := f.svc.RemoveItem(ctx, f.userID, reel.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, f.userID))

	_, err = f.svc.AddItem(ctx, f.userID, reel.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.userID, rod.ID, 2)
	require.NoError(t, err)

	cart, err := f.svc.RemoveItem(ctx, f.userID, reel.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	cart, err = f.svc.RemoveItem(ctx, f.userID, reel.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	require.NoError(t, f.svc.Clear(ctx, f.userID))
	require.NoError(t, f.svc.Clear(ctx, f.userID))
	cart, err = f.svc.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}
