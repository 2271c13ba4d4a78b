package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration extends time.Duration to support a leading "d" (days) component,
// e.g. "30d" or "1d12h".
type Duration struct {
	time.Duration
}

// EnvDecode implements envconfig.Decoder
func (d *Duration) EnvDecode(v string) error {
	if v == "" {
		return nil
	}

	var days time.Duration
	if idx := strings.Index(v, "d"); idx > 0 {
		n, err := strconv.Atoi(v[:idx])
		if err != nil {
			return fmt.Errorf("invalid days value: %w", err)
		}
		days = time.Duration(n) * 24 * time.Hour
		v = v[idx+1:]
		if v == "" {
			d.Duration = days
			return nil
		}
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	d.Duration = days + duration
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	return d.EnvDecode(string(text))
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d Duration) String() string {
	return d.Duration.String()
}
