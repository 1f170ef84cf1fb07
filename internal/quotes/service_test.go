package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/shared"
)

var today = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memoryRepo, *fakeOrders) {
	repo := newMemoryRepo()
	creator := &fakeOrders{}
	svc := NewService(repo, fakeCatalog{}, creator, nil)
	svc.now = func() time.Time { return today }
	return svc, repo, creator
}

func productLine(qty string) orders.CreateItemRequest {
	id := int64(7)
	return orders.CreateItemRequest{ItemType: orders.ItemTypeProduct, ProductID: &id, Quantity: decimal.RequireFromString(qty)}
}

func laborLine() orders.CreateItemRequest {
	id := int64(3)
	return orders.CreateItemRequest{ItemType: orders.ItemTypeLabor, LaborTypeID: &id, Quantity: decimal.NewFromInt(1)}
}

func draft(t *testing.T, svc *Service) Detail {
	t.Helper()
	detail, err := svc.Create(context.Background(), CreateQuoteRequest{
		ClientID: 1, VehicleID: 10, Items: []orders.CreateItemRequest{productLine("2"), laborLine()},
	}, 5)
	require.NoError(t, err)
	return detail
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	svc, _, _ := newTestService()
	detail := draft(t, svc)
	assert.Equal(t, StatusDraft, detail.Quote.Status)
	assert.Len(t, detail.Items, 2)
	assert.Equal(t, "130.00", detail.Quote.Subtotal.StringFixed(2))
	assert.Equal(t, "130.00", detail.Quote.Total.StringFixed(2))
}

func TestCreateQuoteValidation(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), CreateQuoteRequest{VehicleID: 10}, 5)
	require.True(t, errors.Is(err, shared.ErrValidation))

	past := today.AddDate(0, 0, -1)
	_, err = svc.Create(context.Background(), CreateQuoteRequest{ClientID: 1, VehicleID: 10, ValidUntil: &past}, 5)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = svc.Create(context.Background(), CreateQuoteRequest{ClientID: 1, VehicleID: 11}, 5)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestQuoteDiscountClampsAndItemsRecompute(t *testing.T) {
	svc, _, _ := newTestService()
	detail := draft(t, svc)
	id := detail.Quote.ID

	quote, err := svc.SetDiscount(context.Background(), id, discountOf(decimal.NewFromInt(200)))
	require.NoError(t, err)
	assert.Equal(t, "130.00", quote.Discount.StringFixed(2))
	assert.True(t, quote.Total.IsZero())

	quote, err = svc.SetDiscount(context.Background(), id, discountOf(decimal.NewFromInt(50)))
	require.NoError(t, err)
	assert.Equal(t, "80.00", quote.Total.StringFixed(2))

	_, err = svc.SetDiscount(context.Background(), id, discountOf(decimal.NewFromInt(-1)))
	require.True(t, errors.Is(err, shared.ErrValidation))

	updated, err := svc.RemoveItem(context.Background(), id, detail.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", updated.Quote.Subtotal.StringFixed(2))
	assert.Equal(t, "30.00", updated.Quote.Discount.StringFixed(2))
	assert.True(t, updated.Quote.Total.IsZero())

	updated, err = svc.RemoveItem(context.Background(), id, detail.Items[1].ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Items)
	assert.True(t, updated.Quote.Discount.IsZero())

	updated, err = svc.AddItem(context.Background(), id, productLine("1"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", updated.Quote.Total.StringFixed(2))
}

func TestApproveRejectFlow(t *testing.T) {
	svc, _, _ := newTestService()
	detail := draft(t, svc)

	quote, err := svc.Approve(context.Background(), detail.Quote.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, quote.Status)

	_, err = svc.AddItem(context.Background(), detail.Quote.ID, laborLine())
	require.ErrorIs(t, err, ErrInvalidStatus)

	quote, err = svc.Reject(context.Background(), detail.Quote.ID, "client declined", 5)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, quote.Status)
	assert.Contains(t, quote.Notes, "client declined")

	_, err = svc.Reject(context.Background(), detail.Quote.ID, "", 5)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApproveRejectsEmptyOrExpired(t *testing.T) {
	svc, repo, _ := newTestService()
	empty, err := svc.Create(context.Background(), CreateQuoteRequest{ClientID: 1, VehicleID: 10}, 5)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), empty.Quote.ID, 5)
	require.ErrorIs(t, err, ErrQuoteEmpty)

	detail := draft(t, svc)
	expired := today.AddDate(0, 0, -2)
	q := repo.state.quotes[detail.Quote.ID]
	q.ValidUntil = &expired
	repo.state.quotes[detail.Quote.ID] = q
	_, err = svc.Approve(context.Background(), detail.Quote.ID, 5)
	require.ErrorIs(t, err, ErrQuoteExpired)
}

func TestConvertCarriesItemsAndDiscount(t *testing.T) {
	svc, _, creator := newTestService()
	detail := draft(t, svc)
	_, err := svc.SetDiscount(context.Background(), detail.Quote.ID, discountOf(decimal.NewFromInt(10)))
	require.NoError(t, err)

	_, err = svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{}, 5)
	require.ErrorIs(t, err, ErrInvalidStatus, "drafts do not convert")

	_, err = svc.Approve(context.Background(), detail.Quote.ID, 5)
	require.NoError(t, err)
	mechanic := int64(4)
	result, err := svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{MechanicID: &mechanic}, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusConverted, result.Quote.Status)
	require.NotNil(t, result.Quote.OrderID)
	assert.Equal(t, result.Order.Order.ID, *result.Quote.OrderID)

	require.Len(t, creator.requests, 1)
	req := creator.requests[0]
	assert.Equal(t, "10.00", req.Discount.StringFixed(2))
	assert.Equal(t, &mechanic, req.MechanicID)
	require.Len(t, req.Items, 2)
	require.NotNil(t, req.Items[0].UnitPrice)
	assert.Equal(t, "50.00", req.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "Oil filter", req.Items[0].Description)

	_, err = svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{}, 5)
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Len(t, creator.requests, 1)
}

func TestConvertFailureLeavesQuoteApproved(t *testing.T) {
	svc, _, creator := newTestService()
	detail := draft(t, svc)
	_, err := svc.Approve(context.Background(), detail.Quote.ID, 5)
	require.NoError(t, err)

	creator.fail = true
	_, err = svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{}, 5)
	require.ErrorIs(t, err, errOrderDown)

	got, err := svc.Get(context.Background(), detail.Quote.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Quote.Status)
	assert.Nil(t, got.Quote.OrderID)
}

func TestConvertRetryReusesOrderAfterStatusWriteFailure(t *testing.T) {
	svc, repo, creator := newTestService()
	detail := draft(t, svc)
	_, err := svc.Approve(context.Background(), detail.Quote.ID, 5)
	require.NoError(t, err)

	repo.failConvert = true
	_, err = svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{}, 5)
	require.ErrorIs(t, err, errStatusWrite)
	got, err := svc.Get(context.Background(), detail.Quote.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Quote.Status)

	result, err := svc.Convert(context.Background(), detail.Quote.ID, ConvertRequest{}, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusConverted, result.Quote.Status)

	require.Len(t, creator.requests, 2)
	for _, req := range creator.requests {
		require.NotNil(t, req.QuoteID)
		assert.Equal(t, detail.Quote.ID, *req.QuoteID)
	}
	assert.Len(t, creator.byQuote, 1)
	assert.Equal(t, creator.byQuote[detail.Quote.ID].ID, result.Order.Order.ID)
	assert.Equal(t, result.Order.Order.ID, *result.Quote.OrderID)
}

func discountOf(v decimal.Decimal) DiscountRequest {
	return DiscountRequest{Discount: &v}
}
