package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validator collects problems found in raw settings, such as environment
// values or placeholder-resolved document fields. Parsing methods return the
// parsed value, or the zero value after recording a problem.
type Validator struct {
	prefix   string
	problems *[]string
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{problems: new([]string)}
}

// Scope returns a validator that prefixes its problems with name and records
// them in the same list as v
func (v *Validator) Scope(name string) *Validator {
	prefix := name
	if v.prefix != "" {
		prefix = v.prefix + " " + name
	}
	return &Validator{prefix: prefix, problems: v.problems}
}

// Required records a problem when value is blank
func (v *Validator) Required(value, name string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.addf("%s is required", name)
	}
	return v
}

// OneOf records a problem unless value is one of allowed
func (v *Validator) OneOf(value string, allowed []string, name string) *Validator {
	if value == "" {
		v.addf("%s is required", name)
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.addf("%s must be one of: %s", name, strings.Join(allowed, ", "))
	return v
}

// Duration parses a positive duration such as "30s"
func (v *Validator) Duration(value, name string) time.Duration {
	d, err := time.ParseDuration(value)
	switch {
	case err != nil:
		v.addf("%s must be a valid duration (e.g., '30s')", name)
		return 0
	case d <= 0:
		v.addf("%s must be a positive duration", name)
		return 0
	}
	return d
}

// PositiveInt parses a whole number greater than zero
func (v *Validator) PositiveInt(value, name string) int {
	n, err := strconv.Atoi(value)
	switch {
	case err != nil:
		v.addf("%s must be a number", name)
		return 0
	case n <= 0:
		v.addf("%s must be positive", name)
		return 0
	}
	return n
}

// URL records a problem unless value is an absolute http or https URL
func (v *Validator) URL(value, name string) *Validator {
	u, err := url.Parse(value)
	switch {
	case value == "":
		v.addf("%s is required", name)
	case err != nil:
		v.addf("%s must be a valid URL: %v", name, err)
	case u.Host == "" || (u.Scheme != "http" && u.Scheme != "https"):
		v.addf("%s must be an http or https URL with a host", name)
	}
	return v
}

// Check records the formatted problem when ok is false
func (v *Validator) Check(ok bool, format string, args ...interface{}) *Validator {
	if !ok {
		v.addf(format, args...)
	}
	return v
}

func (v *Validator) addf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if v.prefix != "" {
		msg = v.prefix + ": " + msg
	}
	*v.problems = append(*v.problems, msg)
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(*v.problems) > 0
}

// Problems returns every recorded problem in order
func (v *Validator) Problems() []string {
	return append([]string(nil), *v.problems...)
}

// Error returns nil, the single problem, or every problem joined
func (v *Validator) Error() error {
	switch len(*v.problems) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", (*v.problems)[0])
	default:
		return fmt.Errorf("validation failed: %s", strings.Join(*v.problems, "; "))
	}
}
