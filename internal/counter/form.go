package counter

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

var (
	nameRe  = regexp.MustCompile(`^[\p{L}\s]+$`)
	phoneRe = regexp.MustCompile(`^0\d{9,10}$`)
	emailRe = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)
)

// Form is the customer block of the counter booking screen.
// DiscountPercent is a fraction in [0,1].
type Form struct {
	FullName        string              `json:"fullName" validate:"required,personname"`
	Phone           string              `json:"phone" validate:"required,vnphone"`
	Email           string              `json:"email" validate:"omitempty,bookingemail"`
	DiscountPercent float64             `json:"discountPercent" validate:"gte=0,lte=1"`
	DiscountCode    string              `json:"discountCode"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod" validate:"omitempty,oneof=CASH TRANSFER"`
}

// normalize trims the text fields and defaults the payment method.
func (f Form) normalize() Form {
	f.FullName = strings.Join(strings.Fields(f.FullName), " ")
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.DiscountCode = strings.TrimSpace(f.DiscountCode)
	f.PaymentMethod = model.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(f.PaymentMethod))))
	if f.PaymentMethod == "" {
		f.PaymentMethod = model.PaymentCash
	}
	return f
}

// ValidationError names the field that blocked submission.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

var fieldMessages = map[string]string{
	"fullName":        "Customer name is required and may only contain letters and spaces.",
	"phone":           "Phone number must start with 0 and have 10-11 digits.",
	"email":           "Email address is not valid.",
	"discountPercent": "Discount must be between 0% and 100%.",
	"paymentMethod":   "Payment method must be CASH or TRANSFER.",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return nameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("vnphone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("bookingemail", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	return v
}

// validateForm checks the customer fields.  The first failing field is
// reported; TRANSFER additionally requires an email for the VietQR.
func validateForm(v *validator.Validate, f Form) error {
	if err := v.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].Field()
			return &ValidationError{Field: field, Message: fieldMessages[field]}
		}
		return err
	}
	if f.PaymentMethod == model.PaymentTransfer && f.Email == "" {
		return &ValidationError{Field: "email", Message: "Email is required for bank transfer payments."}
	}
	return nil
}

// FinalTotal applies a fractional discount to base and rounds to whole
// currency units, never going below zero.
func FinalTotal(base model.Amount, discount float64) model.Amount {
	switch {
	case discount < 0 || math.IsNaN(discount):
		discount = 0
	case discount > 1:
		discount = 1
	}
	final := math.Round(float64(base) * (1 - discount))
	if final < 0 {
		return 0
	}
	return model.Amount(final)
}
