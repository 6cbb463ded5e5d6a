// Package validation configures go-playground/validator for request DTOs and boundary records.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator

	requiredText = "this field is required"
)

func setup() {
	uni := ut.New(en.New())
	translator, _ = uni.GetTranslator("en")
	validate = validator.New()
	configure(validate)
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(engine)
	}
}

func configure(v *validator.Validate) {
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = v.RegisterTranslation("required", translator,
		func(t ut.Translator) error { return t.Add("required", requiredText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("required", fe.Field())
			return s
		},
	)
}

// Init wires the shared configuration into gin's binding validator. Safe to call repeatedly.
func Init() {
	once.Do(setup)
}

// Struct validates v using its `validate` tags.
func Struct(v any) error {
	Init()
	return validate.Struct(v)
}

// Fields flattens validator errors into json-field -> message. It returns nil for other errors.
func Fields(err error) map[string]string {
	Init()
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(translator)
	}
	return out
}

// First returns a single readable message for err.
func First(err error) string {
	Init()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Translate(translator)
	}
	return err.Error()
}
