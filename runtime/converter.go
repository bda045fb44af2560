package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/mitchellh/mapstructure"
)

// ToStringValueMap renders every value of m as a string, for headers and
// query parameters.
func ToStringValueMap(m map[string]any) map[string]string {
	result := make(map[string]string, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case string:
			result[key] = v
		case int:
			result[key] = strconv.Itoa(v)
		case float64:
			result[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			result[key] = strconv.FormatBool(v)
		case nil:
			result[key] = ""
		default:
			result[key] = fmt.Sprintf("%v", v)
		}
	}
	return result
}

// mapToStruct converts a map[string]any to a struct using mapstructure.
// It uses json tags for field mapping and supports time.Duration and time.Time conversions.
func mapToStruct(m map[string]any, target any) error {
	return decodeWithTag(m, target, "json")
}

// mapToStructFromYAML is mapToStruct for config structs, which carry yaml tags.
func mapToStructFromYAML(m map[string]any, target any) error {
	return decodeWithTag(m, target, "yaml")
}

func decodeWithTag(m map[string]any, target any, tag string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: tag,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true, // Allow type coercion (e.g., int -> float64)
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode map to struct: %w", err)
	}

	return nil
}

// structToMap converts a struct to map[string]any using JSON round-trip.
func structToMap(s any) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to map: %w", err)
	}

	return result, nil
}

// decodeInput converts the effective input of a service integration into its
// typed form and validates it. Both steps fail as States.TaskFailed.
func decodeInput[T any](input any, integration string) (T, error) {
	var target T

	m, ok := input.(map[string]any)
	if !ok {
		return target, states.NewTaskFailed("%s expects an object input, got %s", integration, describe(input))
	}
	if err := mapToStruct(m, &target); err != nil {
		return target, states.NewTaskFailed("%s: %v", integration, err)
	}
	if err := validate.Struct(target); err != nil {
		return target, states.NewTaskFailed("%v", formatValidationError(integration+" input is invalid", err))
	}
	return target, nil
}

// encodeBody renders a message or object body. Strings are kept as-is and
// anything else is JSON encoded.
func encodeBody(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode body: %w", err)
	}
	return string(data), nil
}

// describe names the JSON type of v for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// DecodeTaskInput is decodeInput for resources outside this package.
func DecodeTaskInput[T any](input any, integration string) (T, error) {
	return decodeInput[T](input, integration)
}
