package common

import (
	"fmt"
	"time"
)

// StringArg returns the string argument name, or "" when absent or not a string.
func StringArg(args map[string]interface{}, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

// RequiredString returns the non-empty string argument name.
func RequiredString(args map[string]interface{}, name string) (string, error) {
	v := StringArg(args, name)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// RequiredTime parses the RFC3339 argument name.
func RequiredTime(args map[string]interface{}, name string) (time.Time, error) {
	s, err := RequiredString(args, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return t, nil
}

// OptionalTime parses the RFC3339 argument name, returning the zero time
// when it is absent.
func OptionalTime(args map[string]interface{}, name string) (time.Time, error) {
	if StringArg(args, name) == "" {
		return time.Time{}, nil
	}
	return RequiredTime(args, name)
}

// IntArg returns the numeric argument name as an int. MCP clients send
// JSON numbers, which decode as float64.
func IntArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// MinutesArg returns the positive minute count name as a duration.
func MinutesArg(args map[string]interface{}, name string) (time.Duration, error) {
	n := IntArg(args, name, 0)
	if n <= 0 {
		return 0, fmt.Errorf("%s is required and must be positive", name)
	}
	return time.Duration(n) * time.Minute, nil
}
