// =============================================================================
// PO Reconcile - External Record Parsing
// =============================================================================
//
// The external system speaks loosely-typed JSON records with optionally
// present fields. This file is the boundary parsing step: raw wire structs
// are package-private and are converted to the typed domain model in
// internal/types before any reconciliation logic runs. The reverse direction
// builds the update payload from the typed model, always emitting both line
// collections so the write replaces rather than patches.
//
// =============================================================================

package nsclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkardell/po-reconcile/internal/types"
)

// =============================================================================
// INBOUND WIRE STRUCTS
// =============================================================================

type rawRef struct {
	ID      string `json:"id"`
	RefName string `json:"refName,omitempty"`
}

type rawExpenseLine struct {
	Account    *rawRef      `json:"account,omitempty"`
	Amount     json.Number  `json:"amount"`
	Rate       *json.Number `json:"rate,omitempty"`
	Memo       *string      `json:"memo,omitempty"`
	Department *rawRef      `json:"department,omitempty"`
	Location   *rawRef      `json:"location,omitempty"`
}

type rawItemLine struct {
	Line        int         `json:"line"`
	Item        rawRef      `json:"item"`
	Quantity    json.Number `json:"quantity"`
	Rate        json.Number `json:"rate"`
	Description *string     `json:"description,omitempty"`
	Department  *rawRef     `json:"department,omitempty"`
	Location    *rawRef     `json:"location,omitempty"`
}

type rawSublist[T any] struct {
	Items []T `json:"items"`
}

type rawOrder struct {
	ID      string                     `json:"id"`
	TranID  string                     `json:"tranId"`
	Entity  rawRef                     `json:"entity"`
	Memo    string                     `json:"memo,omitempty"`
	Expense rawSublist[rawExpenseLine] `json:"expense"`
	Item    rawSublist[rawItemLine]    `json:"item"`
}

type rawAccount struct {
	ID         string `json:"id"`
	AcctNumber string `json:"acctNumber"`
	AcctName   string `json:"acctName"`
	IsSandbox  bool   `json:"isSandbox"`
}

type rawItem struct {
	ID        string       `json:"id"`
	Name      string       `json:"itemId"`
	Number    string       `json:"itemNumber"`
	Type      string       `json:"itemType"`
	BasePrice *json.Number `json:"basePrice,omitempty"`
	Inactive  bool         `json:"isInactive"`
	IsSandbox bool         `json:"isSandbox"`
}

type rawName struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsSandbox bool   `json:"isSandbox"`
}

// =============================================================================
// INBOUND CONVERSION
// =============================================================================

func (r *rawOrder) toOrder() (*types.Order, error) {
	order := &types.Order{
		ID:     r.ID,
		TranID: r.TranID,
		Entity: types.RecordRef{ID: r.Entity.ID, Name: r.Entity.RefName},
		Memo:   r.Memo,
	}

	for i, raw := range r.Expense.Items {
		line, err := raw.toExpenseLine()
		if err != nil {
			return nil, fmt.Errorf("order %s expense line %d: %w", r.TranID, i, err)
		}
		order.ExpenseLines = append(order.ExpenseLines, line)
	}

	for i, raw := range r.Item.Items {
		line, err := raw.toItemLine()
		if err != nil {
			return nil, fmt.Errorf("order %s item line %d: %w", r.TranID, i, err)
		}
		order.ItemLines = append(order.ItemLines, line)
	}

	return order, nil
}

func (r *rawExpenseLine) toExpenseLine() (types.ExpenseLine, error) {
	line := types.ExpenseLine{
		Account:    toRef(r.Account),
		Memo:       r.Memo,
		Department: toRef(r.Department),
		Location:   toRef(r.Location),
	}

	amount, err := parseDecimal(r.Amount)
	if err != nil {
		return line, fmt.Errorf("amount: %w", err)
	}
	line.Amount = amount

	if r.Rate != nil {
		rate, err := parseDecimal(*r.Rate)
		if err != nil {
			return line, fmt.Errorf("rate: %w", err)
		}
		line.Rate = &rate
	}

	return line, nil
}

func (r *rawItemLine) toItemLine() (types.ItemLine, error) {
	line := types.ItemLine{
		LineNumber:  r.Line,
		Item:        types.RecordRef{ID: r.Item.ID, Name: r.Item.RefName},
		Description: r.Description,
		Department:  toRef(r.Department),
		Location:    toRef(r.Location),
	}

	qty, err := parseDecimal(r.Quantity)
	if err != nil {
		return line, fmt.Errorf("quantity: %w", err)
	}
	line.Quantity = qty

	rate, err := parseDecimal(r.Rate)
	if err != nil {
		return line, fmt.Errorf("rate: %w", err)
	}
	line.Rate = rate

	return line, nil
}

func (r *rawAccount) toAccount() types.Account {
	return types.Account{ID: r.ID, Number: r.AcctNumber, Name: r.AcctName, Sandbox: r.IsSandbox}
}

func (r *rawItem) toItem() (types.Item, error) {
	item := types.Item{
		ID:       r.ID,
		Name:     r.Name,
		Number:   r.Number,
		Type:     parseItemType(r.Type),
		Inactive: r.Inactive,
		Sandbox:  r.IsSandbox,
	}
	if r.BasePrice != nil {
		price, err := parseDecimal(*r.BasePrice)
		if err != nil {
			return item, fmt.Errorf("item %s basePrice: %w", r.ID, err)
		}
		item.BasePrice = &price
	}
	return item, nil
}

// parseItemType normalizes the wire item type ("nonInventoryItem",
// "serviceItem", ...) to the cache vocabulary ("noninventory", "service").
func parseItemType(raw string) types.ItemType {
	return types.ItemType(strings.ToLower(strings.TrimSuffix(raw, "Item")))
}

func toRef(r *rawRef) *types.RecordRef {
	if r == nil {
		return nil
	}
	return &types.RecordRef{ID: r.ID, Name: r.RefName}
}

func parseDecimal(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}

// =============================================================================
// OUTBOUND PAYLOAD
// =============================================================================

// updatePayload is the write-back body. Both sublists are always present,
// even when empty: the update call uses replace semantics on both
// collections and an omitted list would leave stale lines behind.
type updatePayload struct {
	Entity  rawRef                     `json:"entity"`
	Expense rawSublist[rawExpenseLine] `json:"expense"`
	Item    rawSublist[rawItemLine]    `json:"item"`
}

func buildUpdatePayload(order *types.Order) updatePayload {
	payload := updatePayload{
		Entity:  rawRef{ID: order.Entity.ID},
		Expense: rawSublist[rawExpenseLine]{Items: []rawExpenseLine{}},
		Item:    rawSublist[rawItemLine]{Items: []rawItemLine{}},
	}

	for _, line := range order.ExpenseLines {
		raw := rawExpenseLine{
			Account:    fromRef(line.Account),
			Amount:     json.Number(line.Amount.String()),
			Memo:       line.Memo,
			Department: fromRef(line.Department),
			Location:   fromRef(line.Location),
		}
		if line.Rate != nil {
			n := json.Number(line.Rate.String())
			raw.Rate = &n
		}
		payload.Expense.Items = append(payload.Expense.Items, raw)
	}

	for _, line := range order.ItemLines {
		payload.Item.Items = append(payload.Item.Items, rawItemLine{
			Line:        line.LineNumber,
			Item:        rawRef{ID: line.Item.ID},
			Quantity:    json.Number(line.Quantity.String()),
			Rate:        json.Number(line.Rate.String()),
			Description: line.Description,
			Department:  fromRef(line.Department),
			Location:    fromRef(line.Location),
		})
	}

	return payload
}

func fromRef(r *types.RecordRef) *rawRef {
	if r == nil {
		return nil
	}
	return &rawRef{ID: r.ID}
}
