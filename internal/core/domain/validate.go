package domain

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return v
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

// ValidateCatalog checks the structure of a catalog document. A missing
// products array and any invalid product are reported as [ErrInvalidCatalog].
func ValidateCatalog(c Catalog) error {
	if c.Products == nil {
		return fmt.Errorf("%w: products is missing or not an array", ErrInvalidCatalog)
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) != 0 {
		first := verrs[0]
		return fmt.Errorf(
			"%w: %s failed on %q (%d violations)",
			ErrInvalidCatalog, first.Namespace(), first.Tag(), len(verrs),
		)
	}
	return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
}
