package transport

import (
	"testing"
	"time"
)

func TestDefaultKeepAliveConfig(t *testing.T) {
	want := KeepAliveConfig{
		PingInterval:   30 * time.Second,
		PongTimeout:    5 * time.Second,
		MaxMissedPongs: 3,
		WriteTimeout:   10 * time.Second,
	}
	if got := DefaultKeepAliveConfig(); got != want {
		t.Errorf("DefaultKeepAliveConfig() = %+v, want %+v", got, want)
	}
}

func TestKeepAliveConfigWithDefaults(t *testing.T) {
	t.Run("ZeroValueBecomesStockConfig", func(t *testing.T) {
		if got := (KeepAliveConfig{}).withDefaults(); got != DefaultKeepAliveConfig() {
			t.Errorf("withDefaults() = %+v, want the stock config", got)
		}
	})

	t.Run("ExplicitFieldsSurvive", func(t *testing.T) {
		got := KeepAliveConfig{
			PongTimeout:  2 * time.Second,
			WriteTimeout: 3 * time.Second,
		}.withDefaults()

		want := KeepAliveConfig{
			PingInterval:   DefaultPingInterval,
			PongTimeout:    2 * time.Second,
			MaxMissedPongs: DefaultMaxMissedPongs,
			WriteTimeout:   3 * time.Second,
		}
		if got != want {
			t.Errorf("withDefaults() = %+v, want %+v", got, want)
		}
	})

	t.Run("NegativeValuesNormalized", func(t *testing.T) {
		got := KeepAliveConfig{
			PingInterval:   -time.Second,
			MaxMissedPongs: -1,
		}.withDefaults()

		if got != DefaultKeepAliveConfig() {
			t.Errorf("withDefaults() = %+v, want the stock config", got)
		}
	})
}

func TestKeepAliveDetectionDelay(t *testing.T) {
	tests := []struct {
		name   string
		config KeepAliveConfig
		want   time.Duration
	}{
		{
			name:   "stock settings detect within 95s",
			config: DefaultKeepAliveConfig(),
			want:   95 * time.Second,
		},
		{
			name:   "aggressive probing",
			config: KeepAliveConfig{PingInterval: 2 * time.Second, PongTimeout: 250 * time.Millisecond, MaxMissedPongs: 1},
			want:   2*time.Second + 250*time.Millisecond,
		},
		{
			name:   "patient probing",
			config: KeepAliveConfig{PingInterval: 15 * time.Second, PongTimeout: 3 * time.Second, MaxMissedPongs: 4},
			want:   63 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.DetectionDelay(); got != tt.want {
				t.Errorf("DetectionDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}
