package nsclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkardell/po-reconcile/internal/errs"
	"github.com/mkardell/po-reconcile/internal/types"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:              srv.URL,
		AccountID:            "ACCT-1",
		Token:                "tok",
		RetryAttempts:        2,
		RetryInitialInterval: time.Millisecond,
	}, zerolog.Nop())
}

const orderBody = `{
	"id": "4001",
	"tranId": "PO-1001",
	"entity": {"id": "77", "refName": "Acme Supplies"},
	"memo": "Q3 restock",
	"expense": {"items": [
		{"account": {"id": "12", "refName": "6001 Freight"}, "amount": "100.00", "rate": "25", "memo": "freight"},
		{"amount": "19.95"}
	]},
	"item": {"items": [
		{"line": 1, "item": {"id": "501", "refName": "Widget"}, "quantity": "2", "rate": "9.50"}
	]}
}`

func TestGetOrderByCodeParsesOrder(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/purchaseOrder/code/PO-1001", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "ACCT-1", r.Header.Get("X-Account-Id"))
		io.WriteString(w, orderBody)
	}))

	order, err := client.GetOrderByCode(context.Background(), "PO-1001")
	require.NoError(t, err)

	assert.Equal(t, "4001", order.ID)
	assert.Equal(t, "PO-1001", order.TranID)
	assert.Equal(t, "77", order.Entity.ID)
	require.Len(t, order.ExpenseLines, 2)

	first := order.ExpenseLines[0]
	require.NotNil(t, first.Account)
	assert.Equal(t, "12", first.Account.ID)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, first.Rate)
	assert.True(t, first.Rate.Equal(decimal.NewFromInt(25)))

	second := order.ExpenseLines[1]
	assert.Nil(t, second.Account)
	assert.Nil(t, second.Rate)
	assert.True(t, second.Amount.Equal(decimal.RequireFromString("19.95")))

	require.Len(t, order.ItemLines, 1)
	assert.Equal(t, 1, order.ItemLines[0].LineNumber)
	assert.Equal(t, "501", order.ItemLines[0].Item.ID)
}

func TestGetOrderByCodeNotFound(t *testing.T) {
	requests := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetOrderByCode(context.Background(), "PO-GONE")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, 1, requests, "not-found must not be retried")
}

func TestGetOrderByCodeRetriesServerErrors(t *testing.T) {
	requests := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, orderBody)
	}))

	order, err := client.GetOrderByCode(context.Background(), "PO-1001")
	require.NoError(t, err)
	assert.Equal(t, "PO-1001", order.TranID)
	assert.Equal(t, 3, requests)
}

func TestGetOrderByCodeExhaustsRetries(t *testing.T) {
	requests := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.GetOrderByCode(context.Background(), "PO-1001")
	assert.ErrorIs(t, err, errs.ErrTransient)
	assert.Equal(t, 3, requests, "initial attempt plus two retries")
}

func TestGetOrderByCodeClientErrorIsPermanent(t *testing.T) {
	requests := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"message": "insufficient permissions"}`)
	}))

	_, err := client.GetOrderByCode(context.Background(), "PO-1001")
	assert.ErrorIs(t, err, errs.ErrRemote)
	assert.Contains(t, err.Error(), "insufficient permissions")
	assert.Equal(t, 1, requests)
}

func TestUpdateOrderReplacesBothSublists(t *testing.T) {
	var (
		method  string
		path    string
		replace string
		body    map[string]json.RawMessage
	)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		replace = r.URL.Query().Get("replace")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))

	rate := decimal.NewFromInt(25)
	order := &types.Order{
		ID:     "4001",
		TranID: "PO-1001",
		Entity: types.RecordRef{ID: "77"},
		ItemLines: []types.ItemLine{
			{LineNumber: 1, Item: types.RecordRef{ID: "501"}, Quantity: decimal.NewFromInt(4), Rate: rate},
		},
	}

	require.NoError(t, client.UpdateOrder(context.Background(), order))

	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/purchaseOrder/4001", path)
	assert.Equal(t, "expense,item", replace)

	// All expense lines converted: the expense sublist must still be sent,
	// explicitly empty, so replace semantics clear the remote list.
	assert.JSONEq(t, `{"items": []}`, string(body["expense"]))

	var items rawSublist[rawItemLine]
	require.NoError(t, json.Unmarshal(body["item"], &items))
	require.Len(t, items.Items, 1)
	assert.Equal(t, "501", items.Items[0].Item.ID)
	assert.Equal(t, json.Number("4"), items.Items[0].Quantity)
}

func TestUpdateOrderRejectionSurfacesStatus(t *testing.T) {
	requests := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message": "invalid sublist"}`)
	}))

	err := client.UpdateOrder(context.Background(), &types.Order{ID: "4001", TranID: "PO-1001"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRemote)
	assert.Contains(t, err.Error(), "invalid sublist")
	assert.Equal(t, 1, requests, "writes are never retried")
}

func TestListOrdersPassesLimit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/purchaseOrder", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"items": [{"id": "1", "tranId": "PO-1", "tranDate": "2026-08-01", "total": "10.00"}]}`)
	}))

	summaries, err := client.ListOrders(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "PO-1", summaries[0].TranID)
}

func TestListItemsParsesBasePrice(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item", r.URL.Path)
		io.WriteString(w, `{"items": [
			{"id": "501", "itemId": "Widget", "itemNumber": "W-1", "itemType": "inventoryItem", "basePrice": "9.50"},
			{"id": "502", "itemId": "Misc", "itemNumber": "M-1", "itemType": "nonInventoryItem", "isInactive": true}
		]}`)
	}))

	items, err := client.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NotNil(t, items[0].BasePrice)
	assert.True(t, items[0].BasePrice.Equal(decimal.RequireFromString("9.50")))
	assert.Equal(t, types.ItemTypeInventory, items[0].Type)
	assert.Nil(t, items[1].BasePrice)
	assert.Equal(t, types.ItemTypeNonInventory, items[1].Type)
	assert.True(t, items[1].Inactive)
}
