package inference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotReady     = errors.New("model not loaded")
)

// Column names of the form fields in the training schema.
const (
	ColumnProductCategory = "ProductCategory"
	ColumnAmountLoan      = "AmountLoan"
	ColumnInvestorID      = "InvestorId"
	ColumnTotalAmount     = "TotalAmount"
)

const (
	MinAmount     = 50.0
	MaxAmount     = 100000.0
	DefaultAmount = 5000.0
)

// ProductCategories lists the categories in the order the form offers them.
var ProductCategories = []string{
	"Airtime",
	"Data Bundles",
	"Retail",
	"Utility Bills",
	"TV",
	"Financial Services",
	"Movies",
}

var InvestorIDs = []int{1, 2}

// FormColumns are the training columns the form supplies.
var FormColumns = []string{
	ColumnProductCategory,
	ColumnAmountLoan,
	ColumnInvestorID,
	ColumnTotalAmount,
}

// Application is one loan application as submitted through the form.
type Application struct {
	ProductCategory string  `json:"product_category"`
	AmountLoan      float64 `json:"amount_loan"`
	InvestorID      int     `json:"investor_id"`
	TotalAmount     float64 `json:"total_amount"`
}

func (a Application) Validate() error {
	if !isCategory(a.ProductCategory) {
		return fmt.Errorf("%w: unknown product category %q", ErrInvalidInput, a.ProductCategory)
	}
	if err := checkAmount("amount_loan", a.AmountLoan); err != nil {
		return err
	}
	if !isInvestor(a.InvestorID) {
		return fmt.Errorf("%w: unknown investor id %d", ErrInvalidInput, a.InvestorID)
	}
	return checkAmount("total_amount", a.TotalAmount)
}

// Key is the canonical cache key for the application.
func (a Application) Key() string {
	return a.ProductCategory + "|" +
		strconv.FormatFloat(a.AmountLoan, 'g', -1, 64) + "|" +
		strconv.Itoa(a.InvestorID) + "|" +
		strconv.FormatFloat(a.TotalAmount, 'g', -1, 64)
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, field)
	}
	if v < MinAmount || v > MaxAmount {
		return fmt.Errorf("%w: %s %.2f outside [%.0f, %.0f]", ErrInvalidInput, field, v, MinAmount, MaxAmount)
	}
	return nil
}

func isCategory(s string) bool {
	for _, c := range ProductCategories {
		if c == s {
			return true
		}
	}
	return false
}

func isInvestor(id int) bool {
	for _, v := range InvestorIDs {
		if v == id {
			return true
		}
	}
	return false
}
