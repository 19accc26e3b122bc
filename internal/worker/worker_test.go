package worker

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "concurrency too low",
			mutate:  func(c *Config) { c.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "concurrency too high",
			mutate:  func(c *Config) { c.Concurrency = 101 },
			wantErr: true,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.PollInterval = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "stale threshold too short",
			mutate:  func(c *Config) { c.StaleJobThreshold = 30 * time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "wrapped permanent error",
			err:  fmt.Errorf("execute job: %w", NewPermanentError(context.Canceled)),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}
