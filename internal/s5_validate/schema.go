package s5_validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/aegis-committee/internal/contracts"
)

var (
	schemaOnce sync.Once
	schemaVal  *validator.Validate
)

// enumValue is implemented by every closed enum in contracts
type enumValue interface {
	IsValid() bool
}

func schemaValidator() *validator.Validate {
	schemaOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report field paths with JSON names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			e, ok := fl.Field().Interface().(enumValue)
			return ok && e.IsValid()
		})
		_ = v.RegisterValidation("evidence_id", func(fl validator.FieldLevel) bool {
			return contracts.IsAllowedEvidence(fl.Field().String())
		})

		schemaVal = v
	})
	return schemaVal
}

// Schema validates struct tags (lengths, bounds, enums, evidence ids)
func Schema(v interface{}) error {
	err := schemaValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %q", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param())
		}
		return fail(RuleSchema, fe.Namespace(), "%s", msg)
	}
	return fail(RuleSchema, "", "%v", err)
}
