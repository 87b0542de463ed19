package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Effect is one signed balance delta for one account, in that account's
// currency.
type Effect struct {
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
}

// SimpleEffects maps an expense/income record to its single balance effect.
// Pure and total; malformed records are rejected by validation before the
// delta stage.
func SimpleEffects(t *SimpleTransaction) []Effect {
	amount := t.Amount
	if t.Kind == KindExpense {
		amount = amount.Neg()
	}

	return []Effect{{
		AccountID: t.AccountID,
		Amount:    amount,
		Currency:  t.Currency,
	}}
}

// TransferEffects maps a transfer to its two balance effects: negative on
// the source in the source currency, positive on the destination in the
// destination currency.
func TransferEffects(t *Transfer) []Effect {
	return []Effect{
		{
			AccountID: t.SourceAccount,
			Amount:    t.SourceAmount.Neg(),
			Currency:  t.SourceCurrency,
		},
		{
			AccountID: t.DestAccount,
			Amount:    t.DestAmount,
			Currency:  t.DestCurrency,
		},
	}
}

// Negate inverts every effect, producing the reversal of a record.
func Negate(effects []Effect) []Effect {
	out := make([]Effect, len(effects))
	for i, e := range effects {
		out[i] = Effect{AccountID: e.AccountID, Amount: e.Amount.Neg(), Currency: e.Currency}
	}
	return out
}

// MergeEffects folds any number of effect lists into one net delta per
// account. Merging before applying makes an update a single well-defined
// delta per account even when the old and new record share accounts or swap
// them between positions; applying reversal and new effect as two separate
// read-modify-write passes against the same balance is exactly the stale
// snapshot double-count this prevents. An account touched by both sides
// stays in the map even when its net delta is zero.
func MergeEffects(groups ...[]Effect) map[uuid.UUID]decimal.Decimal {
	merged := make(map[uuid.UUID]decimal.Decimal)
	for _, group := range groups {
		for _, e := range group {
			merged[e.AccountID] = merged[e.AccountID].Add(e.Amount)
		}
	}
	return merged
}
