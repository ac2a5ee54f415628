// Package validation runs go-playground/validator on service inputs and turns
// the first failure into an apperr.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"cargo-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// lets gt/gte/lt/required work on money fields
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	return v
}

// Struct validates s and returns nil or an *apperr.ValidationError.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fieldPath(fe.Namespace())
		return apperr.Validation(field, message(field, fe))
	}
	return apperr.Validation("", err.Error())
}

// fieldPath drops the struct name: "CreateOrderInput.items[0].quantity" -> "items[0].quantity".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("El campo %s es obligatorio", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s requiere al menos %s elemento(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s debe ser al menos %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s debe ser mayor que %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s debe ser mayor o igual a %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s debe ser uno de: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s supera el máximo de %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s no es válido", field)
	}
}
