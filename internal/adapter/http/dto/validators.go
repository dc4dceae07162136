package dto

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var identifierRe = regexp.MustCompile(`^\d{5}-\d$`)

// maxMoneyMagnitude is the largest absolute amount the accounts table can
// represent: NUMERIC(12,2) leaves ten integer digits.
var maxMoneyMagnitude = decimal.New(1, 10)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_identifier", validateAccountIdentifier)
		_ = v.RegisterValidation("money", validateMoney)
	}
}

// validateAccountIdentifier accepts the NNNNN-N display format.
func validateAccountIdentifier(fl validator.FieldLevel) bool {
	return identifierRe.MatchString(fl.Field().String())
}

// validateMoney accepts decimal strings with at most two fractional digits
// and a magnitude the store can hold. Sign checks belong to the ledger, not
// the transport.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Exponent() >= -2 && d.Abs().LessThan(maxMoneyMagnitude)
}

// ParseAmount converts a validated request amount into a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
