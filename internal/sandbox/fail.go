package sandbox

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FailConfig injects errors into a share of requests.
type FailConfig struct {
	// Rate is the probability in [0, 1] that a request fails.
	Rate float64
	// Code is the status returned for injected failures.
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>". The empty string
// disables failure injection; code defaults to 500.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return FailConfig{}, fmt.Errorf("sandbox: invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate %v out of range [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail code: %w", err)
			}
			if code < 100 || code > 599 {
				return FailConfig{}, fmt.Errorf("sandbox: fail code %d is not an HTTP status", code)
			}
			cfg.Code = code
		default:
			return FailConfig{}, fmt.Errorf("sandbox: unknown fail key %q", key)
		}
	}
	return cfg, nil
}
