package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// WaitFunc suspends for the given number of seconds. It returns early with the
// context error when ctx is cancelled.
type WaitFunc func(ctx context.Context, seconds float64) error

// Options configures a loaded state machine. Zero values are replaced by the
// tag defaults.
type Options struct {
	SimulateWait       bool   `yaml:"simulate_wait" default:"false"`
	ValidateDefinition *bool  `yaml:"validate_definition" default:"true"`
	ExecutionName      string `yaml:"execution_name" default:"execution" validate:"required"`
	StateMachineName   string `yaml:"state_machine_name" default:"state-machine" validate:"required"`
	QueryLanguage      string `yaml:"query_language" default:"JSONPath" validate:"oneof=JSONPath JSONata"`
	Region             string `yaml:"region" default:"us-east-1" validate:"required"`
	AccountID          string `yaml:"account_id" default:"123456789012" validate:"required,numeric,len=12"`

	Logger         *slog.Logger         `yaml:"-" validate:"-"`
	Hooks          Hooks                `yaml:"-" validate:"-"`
	TracerProvider trace.TracerProvider `yaml:"-" validate:"-"`
	MeterProvider  metric.MeterProvider `yaml:"-" validate:"-"`

	Wait     WaitFunc         `yaml:"-" validate:"-"`
	NewToken func() string    `yaml:"-" validate:"-"`
	Now      func() time.Time `yaml:"-" validate:"-"`
	Random   func() float64   `yaml:"-" validate:"-"`
}

// DecodeOptions builds Options from a generic map, as found in a YAML config
// file. Defaults and validation are applied when the options are passed to Load.
func DecodeOptions(raw map[string]any) (*Options, error) {
	opts := &Options{}
	if len(raw) == 0 {
		return opts, nil
	}
	if err := mapToStructFromYAML(raw, opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	return opts, nil
}

// resolveOptions returns a copy of opts with defaults applied and every
// injectable function set.
func resolveOptions(opts *Options) (*Options, error) {
	resolved := Options{}
	if opts != nil {
		resolved = *opts
	}

	if err := prepareConfig(&resolved); err != nil {
		return nil, err
	}

	if resolved.Logger == nil {
		resolved.Logger = slog.New(slog.DiscardHandler)
	}
	if resolved.Wait == nil {
		resolved.Wait = noWait
		if resolved.SimulateWait {
			resolved.Wait = sleep
		}
	}
	if resolved.NewToken == nil {
		resolved.NewToken = uuid.NewString
	}
	if resolved.Now == nil {
		resolved.Now = time.Now
	}
	return &resolved, nil
}

func noWait(ctx context.Context, _ float64) error {
	return ctx.Err()
}

func sleep(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InitializeConfig prepares a resource config struct: defaults from tags,
// then raw values from the config file, then validation.
func InitializeConfig(config any, rawValues map[string]any) error {
	if err := ApplyDefaults(config); err != nil {
		slog.Error("Resource config: failed to apply defaults",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if len(rawValues) > 0 {
		if err := mapToStructFromYAML(rawValues, config); err != nil {
			slog.Error("Resource config: failed to apply config values",
				"config_type", reflect.TypeOf(config).String(),
				"error", err)
			return fmt.Errorf("failed to apply config values: %w", err)
		}
	}

	configValue := reflect.ValueOf(config)
	if configValue.Kind() == reflect.Ptr {
		configValue = configValue.Elem()
	}

	if err := validateConfig(configValue.Interface()); err != nil {
		slog.Error("Resource config validation failed",
			"config_type", reflect.TypeOf(config).String(),
			"error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

func registerCustomValidators() {
	// hostname_port validates "host:port" format with numeric port
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		host, port, err := net.SplitHostPort(addr)
		if err != nil || host == "" || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	// url_format validates URL structure
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.Scheme != "" && u.Host != ""
	})

	// arn validates the arn:partition:service:region:account:resource shape
	validate.RegisterValidation("arn", func(fl validator.FieldLevel) bool {
		parts := strings.SplitN(fl.Field().String(), ":", 6)
		return len(parts) == 6 && parts[0] == "arn" && parts[1] != "" && parts[2] != ""
	})
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	return nil
}

func validateConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(config); err != nil {
		return formatValidationError("config validation failed", err)
	}

	return nil
}

// formatValidationError flattens validator errors into one readable message.
func formatValidationError(prefix string, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%s: %w", prefix, err)
	}

	var errMessages []string
	for _, fieldErr := range validationErrors {
		errMessages = append(errMessages, fmt.Sprintf(
			"field '%s' failed validation: %s (rule: %s)",
			fieldErr.Field(),
			fieldErr.Error(),
			fieldErr.Tag(),
		))
	}
	return fmt.Errorf("%s:\n  - %s", prefix, strings.Join(errMessages, "\n  - "))
}

func prepareConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := ApplyDefaults(config); err != nil {
		return fmt.Errorf("failed to prepare config (defaults): %w", err)
	}

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("failed to prepare config (validation): %w", err)
	}

	return nil
}
