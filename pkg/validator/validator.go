package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/trio/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// requiredFields are checked in this order so error output is stable.
var requiredFields = []string{"domain", "substance", "style"}

// Decode validates a raw request payload and returns the trio it describes.
// Failures are returned as a domain.Error of kind ValidationError wrapping an AggregateError.
func Decode(payload map[string]any) (domain.Trio, error) {
	if payload == nil {
		return domain.Trio{}, invalid(&FieldError{Key: "body", Reason: "required"})
	}

	// Older clients nest the programs under "trio"; point them at the flat fields.
	if truthy(payload["trio"]) && !hasAny(payload, requiredFields...) {
		return domain.Trio{}, invalid(&FieldError{
			Key:    "trio",
			Reason: "send domain, substance, and style fields (strings)",
		})
	}

	var errs []error
	for _, key := range requiredFields {
		if err := checkString(key, payload[key], true); err != nil {
			errs = append(errs, err)
		}
	}
	if err := checkString("variation", payload["variation"], false); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return domain.Trio{}, invalid(errs...)
	}

	var trio domain.Trio
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &trio,
		TagName: "mapstructure",
	})
	if err != nil {
		return domain.Trio{}, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return domain.Trio{}, invalid(&FieldError{Key: "body", Reason: err.Error()})
	}

	return withDefaults(trio), nil
}

// Validate applies the request rules to an already typed trio and fills defaults.
func Validate(trio domain.Trio) (domain.Trio, error) {
	fields := map[string]string{
		"domain":    trio.Domain,
		"substance": trio.Substance,
		"style":     trio.Style,
	}
	var errs []error
	for _, key := range requiredFields {
		if strings.TrimSpace(fields[key]) == "" {
			errs = append(errs, &FieldError{Key: key, Reason: "required"})
		}
	}
	if len(errs) > 0 {
		return domain.Trio{}, invalid(errs...)
	}
	return withDefaults(trio), nil
}

func withDefaults(trio domain.Trio) domain.Trio {
	if strings.TrimSpace(trio.Variation) == "" {
		trio.Variation = domain.DefaultVariation
	}
	return trio
}

func checkString(key string, value any, required bool) error {
	if value == nil {
		if required {
			return &FieldError{Key: key, Reason: "required"}
		}
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return &FieldError{Key: key, Reason: "must be a string", Value: value}
	}
	if required && strings.TrimSpace(s) == "" {
		return &FieldError{Key: key, Reason: "required"}
	}
	return nil
}

func hasAny(payload map[string]any, keys ...string) bool {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return true
		}
	}
	return false
}

// truthy reports whether a decoded JSON value carries content. Null, false,
// zero and empty strings, objects and arrays do not.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return true
}

func invalid(errs ...error) error {
	aggr := &AggregateError{Errors: errs}
	return &domain.Error{
		Kind:    domain.KindValidation,
		Message: aggr.Error(),
		Err:     aggr,
	}
}
