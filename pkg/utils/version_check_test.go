package utils

import "testing"

func TestCheckServerVersion(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"v0.1.0", true},
		{"0.1.0", true},
		{"v1.2.3", true},
		{"v0.0.9", false},
		{"v0.0.0-dev", true},
		{"garbage", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := CheckServerVersion(tt.version); got != tt.want {
				t.Errorf("CheckServerVersion(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}
