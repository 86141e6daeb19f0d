package core

// validation.go holds the business rules a resolved row must satisfy before
// it is offered for import.
//
// Rules are checked with ozzo-validation. Every violated rule contributes one
// message; the messages are reported in a fixed order so that a row always
// produces the same error text.

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Violation messages, also used by the web layer's error mapping.
const (
	msgHSCodeInvalid   = "HS code missing or invalid"
	msgDescriptionMiss = "description missing"
	msgCurrencyInvalid = "currency missing or invalid"
	msgQuantityInvalid = "invalid quantity"
)

// ruleOrder is the reporting order of violations, keyed by json field name.
var ruleOrder = []string{"hsCodeId", "description", "currencyId", "quantity"}

// ValidateRow checks a resolved row and returns its violations in
// reporting order. An empty result means the row is valid.
func ValidateRow(row *ResolvedPreviewRow) []string {
	err := validation.ValidateStruct(row,
		validation.Field(&row.HSCodeID, validation.NotNil.Error(msgHSCodeInvalid)),
		validation.Field(&row.Description, validation.Required.Error(msgDescriptionMiss)),
		validation.Field(&row.CurrencyID, validation.NotNil.Error(msgCurrencyInvalid)),
		validation.Field(&row.Quantity,
			validation.Required.Error(msgQuantityInvalid),
			validation.Min(0.0).Exclusive().Error(msgQuantityInvalid),
		),
	)
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(errs))
	for _, field := range ruleOrder {
		if fe, ok := errs[field]; ok && fe != nil {
			msgs = append(msgs, fe.Error())
		}
	}
	return msgs
}

// joinViolations formats violations as one row-level message.
func joinViolations(msgs []string) string {
	return strings.Join(msgs, ", ")
}
