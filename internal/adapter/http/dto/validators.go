package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	ifscRe    = regexp.MustCompile(`^[A-Za-z]{4}0[A-Za-z0-9]{6}$`)
	inPhoneRe = regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ifsc", validateIFSC)
		_ = v.RegisterValidation("in_phone", validateIndianPhone)
	}
}

// validateIFSC accepts an Indian Financial System Code: four bank letters,
// a zero, then six branch characters.
func validateIFSC(fl validator.FieldLevel) bool {
	return ifscRe.MatchString(fl.Field().String())
}

// validateIndianPhone accepts a ten digit mobile number, optionally +91.
func validateIndianPhone(fl validator.FieldLevel) bool {
	return inPhoneRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
