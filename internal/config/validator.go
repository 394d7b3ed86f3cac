package config

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("apihost", isAPIHost); err != nil {
		return nil, nil, fmt.Errorf("failed to register apihost validation: %w", err)
	}
	if err := validate.RegisterTranslation("apihost", trans, func(ut ut.Translator) error {
		return ut.Add("apihost", "{0} must be a host name or an http(s) URL", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("apihost", fieldPath(fe))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register apihost translation: %w", err)
	}

	return validate, trans, nil
}

// fieldPath names a field by its dotted config key, e.g. "server.port".
func fieldPath(fe validator.FieldError) string {
	return strings.TrimPrefix(fe.Namespace(), "Config.")
}

// translateError renders fe with the dotted config key in place of the bare
// field name the default translations use.
func translateError(fe validator.FieldError, trans ut.Translator) string {
	msg := fe.Translate(trans)
	if rest, ok := strings.CutPrefix(msg, fe.Field()+" "); ok {
		return fieldPath(fe) + " " + rest
	}
	return msg
}

// isAPIHost accepts either a bare host ("sounds.example.com") or a URL with
// an http or https scheme.
func isAPIHost(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return false
	}
	if !schemePattern.MatchString(value) {
		if strings.Contains(value, "://") {
			return false
		}
		value = "https://" + value
	}

	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Host != ""
}
