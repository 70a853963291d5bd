package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"bankcore/internal/models"
)

// Violation is one failed rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator defines validation methods
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records the first error for a field; later ones are dropped.
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Violations returns the collected errors ordered by field.
func (v *Validator) Violations() []Violation {
	out := make([]Violation, 0, len(v.Errors))
	for field, msg := range v.Errors {
		out = append(out, Violation{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// Required checks if a string is not empty
func (v *Validator) Required(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

// MaxLength checks if a string has at most n characters
func (v *Validator) MaxLength(field string, value string, n int) {
	v.Check(utf8.RuneCountInString(value) <= n, field, fmt.Sprintf("must not be more than %d characters long", n))
}

// AmountRange checks min <= amount <= max.
func (v *Validator) AmountRange(field string, amount, min, max models.Amount) {
	v.Check(amount >= min && amount <= max, field, fmt.Sprintf("must be between %s and %s", min, max))
}

// Currency validates an ISO 4217 style code.
func (v *Validator) Currency(field, code string) {
	v.Check(ValidCurrency(code), field, "must be a supported three-letter currency code")
}

// Country validates an ISO 3166 alpha-2 code.
func (v *Validator) Country(field, code string) {
	v.Check(ValidCountry(code), field, "must be a two-letter country code")
}

// IBAN validates length for the country and the mod-97 check digits.
func (v *Validator) IBAN(field, iban string) {
	v.Check(ValidIBAN(iban), field, "must be a valid IBAN")
}

// RoutingNumber validates a US ABA routing number.
func (v *Validator) RoutingNumber(field, routing string) {
	v.Check(ValidABA(routing), field, "must be a valid 9-digit routing number")
}

// BIC validates a SWIFT/BIC code.
func (v *Validator) BIC(field, bic string) {
	v.Check(ValidBIC(bic), field, "must be a valid SWIFT/BIC code")
}

// AccountNumber checks a domestic account number: 4 to 17 digits.
func (v *Validator) AccountNumber(field, number string) {
	v.Check(accountNumberRegex.MatchString(number), field, "must be 4 to 17 digits")
}
