// Package validation checks request structs with struct tags and reports the
// first failure as a Validation AppError.
package validation

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// Validator wraps a configured validator.Validate. Safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New registers the engine's custom tags:
//
//	product_type  a supported product type name (case-insensitive)
//	price         a positive decimal string with at most two fractional digits
//	file_ref      an absolute URL or an opaque storage key without whitespace
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("product_type", validateProductType)
	_ = v.RegisterValidation("price", validatePrice)
	_ = v.RegisterValidation("file_ref", validateFileRef)

	return &Validator{v: v}
}

// Struct validates s and converts the first field failure to an AppError
// with code INVALID_<FIELD>
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.NewValidationError("INVALID_REQUEST", err.Error())
	}

	fe := fieldErrs[0]
	code := "INVALID_" + strings.ToUpper(fe.Field())
	if fe.Tag() == "required" {
		code = "MISSING_" + strings.ToUpper(fe.Field())
	}
	return errors.NewValidationError(code, describe(fe)).
		WithDetails(map[string]interface{}{"field": fe.Field(), "rule": fe.Tag()})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "product_type":
		return fmt.Sprintf("%s is not a supported product type", fe.Field())
	case "price":
		return fmt.Sprintf("%s must be a positive amount with at most two decimals", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateProductType(fl validator.FieldLevel) bool {
	_, err := values.ParseProductType(fl.Field().String())
	return err == nil
}

func validatePrice(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Exponent() >= -2
}

func validateFileRef(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	}
	return true
}
