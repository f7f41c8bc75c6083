// Package validation plugs go-playground/validator into echo and flattens
// failures into a field → tag map for API responses.
package validation

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/muluken16/E-liberary/internal/model"
)

// Error is returned by Validate when a request body fails its rules.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		keys = append(keys, k+":"+v)
	}
	return "validation failed: " + strings.Join(keys, ",")
}

// PaymentRequest is implemented by bodies that choose a payment type.  A
// rental must carry between one and model.MaxRentalWeeks weeks.
type PaymentRequest interface {
	PaymentTypeValue() string
	RentalWeeksValue() *int
}

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a validator that reports json field names.  paymentTypes lists
// request structs (zero values) that get the rental weeks rule.
func New(paymentTypes ...any) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if len(paymentTypes) > 0 {
		v.RegisterStructValidation(rentalWeeksRule, paymentTypes...)
	}
	return &Validator{v: v}
}

func rentalWeeksRule(sl validator.StructLevel) {
	pr, ok := sl.Current().Interface().(PaymentRequest)
	if !ok || pr.PaymentTypeValue() != model.PaymentTypeRental {
		return
	}
	w := pr.RentalWeeksValue()
	switch {
	case w == nil:
	case *w < 1:
		sl.ReportError(*w, "rental_duration_weeks", "RentalWeeks", "min", "1")
	case *w > model.MaxRentalWeeks:
		sl.ReportError(*w, "rental_duration_weeks", "RentalWeeks", "max", strconv.Itoa(model.MaxRentalWeeks))
	}
}

// Validate runs struct rules on i.
func (v *Validator) Validate(i interface{}) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return &Error{Fields: fields}
}
