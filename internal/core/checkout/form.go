package checkout

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{4,18}[0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

var fieldMessages = map[string]string{
	"required": "required field",
	"email":    "enter a valid email",
	"phone":    "enter a valid phone number",
}

// check runs the struct rules and returns one message per failing field.
func check(values any) map[string]string {
	errs := map[string]string{}

	err := validate.Struct(values)
	if err == nil {
		return errs
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs[""] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "invalid value"
		}
		errs[fe.Field()] = msg
	}
	return errs
}

// UserDataForm holds the personal-info step. Errors and Valid are recomputed on
// every change.
type UserDataForm struct {
	Values domain.UserDataFields `json:"values"`
	Errors map[string]string     `json:"errors"`
	Valid  bool                  `json:"valid"`
}

func NewUserDataForm() UserDataForm {
	f := UserDataForm{}
	f.recompute()
	return f
}

func (f *UserDataForm) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case "first_name":
		f.Values.FirstName = value
	case "last_name":
		f.Values.LastName = value
	case "phone":
		f.Values.Phone = value
	case "email":
		f.Values.Email = value
	default:
		return ErrUnknownField
	}
	f.recompute()
	return nil
}

// Fill replaces every value at once.
func (f *UserDataForm) Fill(values domain.UserDataFields) {
	f.Values = domain.UserDataFields{
		FirstName: strings.TrimSpace(values.FirstName),
		LastName:  strings.TrimSpace(values.LastName),
		Phone:     strings.TrimSpace(values.Phone),
		Email:     strings.TrimSpace(values.Email),
	}
	f.recompute()
}

func (f *UserDataForm) recompute() {
	f.Errors = check(f.Values)
	f.Valid = len(f.Errors) == 0
}

type ShippingAddressForm struct {
	Values domain.ShippingAddressFields `json:"values"`
	Errors map[string]string            `json:"errors"`
	Valid  bool                         `json:"valid"`
}

func NewShippingAddressForm() ShippingAddressForm {
	f := ShippingAddressForm{}
	f.recompute()
	return f
}

func (f *ShippingAddressForm) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case "address":
		f.Values.Address = value
	case "locality":
		f.Values.Locality = value
	case "postal_code":
		f.Values.PostalCode = value
	default:
		return ErrUnknownField
	}
	f.recompute()
	return nil
}

func (f *ShippingAddressForm) Fill(values domain.ShippingAddressFields) {
	f.Values = domain.ShippingAddressFields{
		Address:    strings.TrimSpace(values.Address),
		Locality:   strings.TrimSpace(values.Locality),
		PostalCode: strings.TrimSpace(values.PostalCode),
	}
	f.recompute()
}

func (f *ShippingAddressForm) recompute() {
	f.Errors = check(f.Values)
	f.Valid = len(f.Errors) == 0
}
