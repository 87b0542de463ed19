package ledger

import "strings"

// Validation rules are pure predicates over a proposed record and the
// accounts it references. The engine always evaluates them against accounts
// read inside the same store transaction as the commit, never against a
// previously cached snapshot.

// validateSimple checks an expense/income record against its resolved
// account.
func validateSimple(t *SimpleTransaction, account *Account) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if !sameCurrency(t.Currency, account.Currency) {
		return ErrCurrencyMismatch
	}

	return nil
}

// validateTransfer checks a transfer against its resolved source and
// destination accounts. Cross-currency normalization has already happened:
// a transfer reaching this point always carries an explicit destination
// amount and currency.
func validateTransfer(t *Transfer, source, dest *Account) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if source.ID == dest.ID {
		return ErrSameAccountTransfer
	}

	if !sameCurrency(t.SourceCurrency, source.Currency) {
		return ErrCurrencyMismatch
	}

	if !sameCurrency(t.DestCurrency, dest.Currency) {
		return ErrCurrencyMismatch
	}

	// Same-currency transfers move one amount; a diverging destination
	// amount would mint or burn money.
	if sameCurrency(t.SourceCurrency, t.DestCurrency) && !t.DestAmount.Equal(t.SourceAmount) {
		return ErrDestAmountMismatch
	}

	return nil
}

func sameCurrency(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
