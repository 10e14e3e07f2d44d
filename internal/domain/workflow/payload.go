package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Payload is the free-form data attached to a transition request.
// It is persisted with the history record.
type Payload map[string]interface{}

// String retrieves a string value from the payload
func (p Payload) String(key string) string {
	if val, ok := p[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// Int64 retrieves an integer value from the payload. ok is false when the key
// is absent or not numeric.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case *int64:
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Float retrieves a float value from the payload
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case *float64:
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Strings retrieves a list of strings from the payload
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// RequireReason rejects transitions without a non-blank reason
func RequireReason() GuardFunc {
	return func(_ context.Context, _ State, in Input) error {
		if strings.TrimSpace(in.Reason) == "" {
			return errors.New("reason is required")
		}
		return nil
	}
}

// RequirePayload rejects transitions missing any of the given payload keys
func RequirePayload(keys ...string) GuardFunc {
	return func(_ context.Context, _ State, in Input) error {
		for _, key := range keys {
			val, ok := in.Payload[key]
			if !ok || val == nil {
				return fmt.Errorf("%s is required", key)
			}
			if s, isString := val.(string); isString && strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", key)
			}
		}
		return nil
	}
}

// AllOf passes only when every guard passes
func AllOf(guards ...GuardFunc) GuardFunc {
	return func(ctx context.Context, from State, in Input) error {
		for _, g := range guards {
			if err := g(ctx, from, in); err != nil {
				return err
			}
		}
		return nil
	}
}
