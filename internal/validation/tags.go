package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pluginmanifest/registry/internal/diagnostic"
)

// check runs one Validator check in fail-fast mode and reports success
func check(fn func(v *Validator)) bool {
	v := New(FailFast())
	fn(v)
	return v.Valid()
}

// NewStructValidator creates a struct validator with the manifest checks
// registered as tags: semver, semver_range, plugin_identifier, fqcn,
// manifest_email and http_uri
func NewStructValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.SemanticVersion(fl.FieldName(), fl.Field().String()) })
	})

	_ = v.RegisterValidation("semver_range", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.SemanticVersionRange(fl.FieldName(), fl.Field().String()) })
	})

	_ = v.RegisterValidation("plugin_identifier", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.Identifier(fl.FieldName(), fl.Field().String()) })
	})

	_ = v.RegisterValidation("fqcn", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.FullyQualifiedName(fl.FieldName(), fl.Field().String()) })
	})

	_ = v.RegisterValidation("manifest_email", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.Email(fl.FieldName(), fl.Field().String()) })
	})

	_ = v.RegisterValidation("http_uri", func(fl validator.FieldLevel) bool {
		return check(func(c *Validator) { c.URI(fl.FieldName(), fl.Field().String(), false) })
	})

	return v
}

// FromStructErrors converts struct validation errors into diagnostics. Any
// other error becomes a single entry under key.
func FromStructErrors(key string, err error) []diagnostic.Entry {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []diagnostic.Entry{diagnostic.Absent(key, err.Error())}
	}

	entries := make([]diagnostic.Entry, 0, len(verrs))
	for _, fe := range verrs {
		message := "failed on '" + fe.Tag() + "'"
		if fe.Param() != "" {
			message += " (" + fe.Param() + ")"
		}
		entries = append(entries, diagnostic.New(fe.Namespace(), fmt.Sprint(fe.Value()), message))
	}
	return entries
}
