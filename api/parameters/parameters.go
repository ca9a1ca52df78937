package parameters

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"code.cloudfoundry.org/lager"

	"autosleep/models"
)

const (
	AutoEnrollment            = "auto-enrollment"
	ExcludeFromAutoEnrollment = "exclude-from-auto-enrollment"
	IdleDuration              = "idle-duration"
	IgnoreRouteServiceError   = "ignore-route-service-error"
	Secret                    = "secret"
	State                     = "state"
)

// InvalidParameterError reports a single rejected parameter together with a
// hint naming the accepted values or format, so the broker can answer with
// the offending field instead of a generic parse error.
type InvalidParameterError struct {
	Name string
	Hint string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Name, e.Hint)
}

// ReadFunc converts one raw parameter value into its typed form. A nil raw
// value means the parameter was absent; withDefault selects whether the
// documented default is applied in that case (provisioning) or an empty
// value is returned (update).
type ReadFunc func(raw interface{}, withDefault bool) (interface{}, error)

// Registry holds one reader per recognized service instance parameter.
// Readers are stateless and safe for concurrent use.
type Registry struct {
	defaultIdleDuration            time.Duration
	defaultIgnoreRouteServiceError bool
	logger                         lager.Logger
	readers                        map[string]ReadFunc
}

func NewRegistry(defaultIdleDuration time.Duration, defaultIgnoreRouteServiceError bool, logger lager.Logger) *Registry {
	r := &Registry{
		defaultIdleDuration:            defaultIdleDuration,
		defaultIgnoreRouteServiceError: defaultIgnoreRouteServiceError,
		logger:                         logger,
	}
	r.readers = map[string]ReadFunc{
		AutoEnrollment: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadAutoEnrollment(raw, withDefault)
		},
		ExcludeFromAutoEnrollment: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadExcludeFromAutoEnrollment(raw, withDefault)
		},
		IdleDuration: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadIdleDuration(raw, withDefault)
		},
		IgnoreRouteServiceError: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadIgnoreRouteServiceError(raw, withDefault)
		},
		Secret: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadSecret(raw, withDefault)
		},
		State: func(raw interface{}, withDefault bool) (interface{}, error) {
			return r.ReadState(raw, withDefault)
		},
	}
	return r
}

// Reader returns the reader registered for the given parameter name.
func (r *Registry) Reader(name string) (ReadFunc, bool) {
	f, ok := r.readers[name]
	return f, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	return names
}

// ReadAutoEnrollment returns the empty string when the parameter is absent
// and no default is requested.
func (r *Registry) ReadAutoEnrollment(raw interface{}, withDefault bool) (models.Enrollment, error) {
	if raw == nil {
		if withDefault {
			return models.EnrollmentStandard, nil
		}
		return "", nil
	}
	value, err := r.readEnum(AutoEnrollment, raw, models.EnrollmentValues())
	if err != nil {
		return "", err
	}
	r.logger.Debug("read-auto-enrollment", lager.Data{"value": value})
	return models.Enrollment(value), nil
}

// ReadExcludeFromAutoEnrollment returns nil for an absent parameter and,
// unlike its sibling readers, also for a blank one.
func (r *Registry) ReadExcludeFromAutoEnrollment(raw interface{}, withDefault bool) (*regexp.Regexp, error) {
	if raw == nil {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, r.invalid(ExcludeFromAutoEnrollment, "should be a valid regexp")
	}
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	pattern, err := regexp.Compile(value)
	if err != nil {
		return nil, r.invalid(ExcludeFromAutoEnrollment, "should be a valid regexp")
	}
	r.logger.Debug("read-exclude-from-auto-enrollment", lager.Data{"value": value})
	return pattern, nil
}

// ReadIdleDuration parses an ISO-8601 duration. A zero duration is returned
// when the parameter is absent and no default is requested.
func (r *Registry) ReadIdleDuration(raw interface{}, withDefault bool) (time.Duration, error) {
	if raw == nil {
		if withDefault {
			return r.defaultIdleDuration, nil
		}
		return 0, nil
	}
	value, ok := raw.(string)
	if !ok {
		return 0, r.invalid(IdleDuration, `param badly formatted (ISO-8601). Example: "PT15M" for 15mn`)
	}
	duration, err := ParseISO8601Duration(value)
	if err != nil {
		return 0, r.invalid(IdleDuration, `param badly formatted (ISO-8601). Example: "PT15M" for 15mn`)
	}
	r.logger.Debug("read-idle-duration", lager.Data{"value": value})
	return duration, nil
}

// ReadIgnoreRouteServiceError always falls back to the configured default
// when the parameter is absent, whatever withDefault says. Parsing is
// case-insensitive in both branches.
func (r *Registry) ReadIgnoreRouteServiceError(raw interface{}, withDefault bool) (bool, error) {
	if raw == nil {
		return r.defaultIgnoreRouteServiceError, nil
	}
	value, ok := raw.(string)
	if !ok {
		return false, r.invalid(IgnoreRouteServiceError, "must be a boolean value")
	}
	switch strings.ToLower(value) {
	case "true":
		r.logger.Debug("read-ignore-route-service-error", lager.Data{"value": value})
		return true, nil
	case "false":
		r.logger.Debug("read-ignore-route-service-error", lager.Data{"value": value})
		return false, nil
	default:
		return false, r.invalid(IgnoreRouteServiceError, "must be a boolean value")
	}
}

// ReadSecret is a pass-through; it never fails validation.
func (r *Registry) ReadSecret(raw interface{}, withDefault bool) (string, error) {
	if raw == nil {
		return "", nil
	}
	if value, ok := raw.(string); ok {
		return value, nil
	}
	return fmt.Sprint(raw), nil
}

func (r *Registry) ReadState(raw interface{}, withDefault bool) (models.EnrollmentState, error) {
	if raw == nil {
		if withDefault {
			return models.EnrollmentStateEnrolled, nil
		}
		return "", nil
	}
	value, err := r.readEnum(State, raw, models.EnrollmentStateValues())
	if err != nil {
		return "", err
	}
	r.logger.Debug("read-state", lager.Data{"value": value})
	return models.EnrollmentState(value), nil
}

func (r *Registry) readEnum(name string, raw interface{}, values []string) (string, error) {
	hint := "choose one between: " + strings.Join(values, ", ")
	value, ok := raw.(string)
	if !ok {
		return "", r.invalid(name, hint)
	}
	for _, candidate := range values {
		if value == candidate {
			return value, nil
		}
	}
	return "", r.invalid(name, hint)
}

func (r *Registry) invalid(name string, hint string) error {
	err := &InvalidParameterError{Name: name, Hint: hint}
	r.logger.Error("invalid-parameter", err, lager.Data{"parameter": name})
	return err
}
