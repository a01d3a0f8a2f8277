package inspections

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domain "github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// pakai nama field json supaya pesan error cocok dengan body request
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct turns validator failures into a *domain.ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Err: err}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		// strip the top-level struct name
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields[key] = msg
	}
	return &domain.ValidationError{Fields: fields}
}
