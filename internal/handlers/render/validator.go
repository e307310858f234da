package render

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	passwordMinLength = 8
	passwordMaxLength = 32
)

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("strong_password", validateStrongPassword)
	validate.RegisterTagNameFunc(useFieldTagNames)
}

// Report field by its json or form tag name, so client sees names it sent
func useFieldTagNames(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// Password has 8..32 chars with at least one upper and lower case letter, digit and punctuation
func validateStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	length := len([]rune(password))
	if length < passwordMinLength || length > passwordMaxLength {
		return false
	}

	var upper, lower, digit, punct bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		}
	}

	return upper && lower && digit && punct
}
