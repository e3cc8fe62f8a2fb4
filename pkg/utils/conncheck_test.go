package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgresql://user:pw@dbhost:5433/lanerace", "dbhost:5433"},
		{"postgresql://user:pw@dbhost/lanerace", "dbhost:5432"},
		{"postgres://user@localhost/lanerace?sslmode=disable", "localhost:5432"},
		{"postgresql://localhost:6432", "localhost:6432"},
		{"mysql://localhost/x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, ExtractFromDBURL(tt.url), tt.want)
		})
	}
}

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"nats://localhost:4223", "localhost:4223"},
		{"nats://token@nats", "nats:4222"},
		{"http://nats", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, ExtractFromNatsURL(tt.url), tt.want)
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	addr := l.Addr().String()

	assert.NilError(t, WaitForTCP(context.Background(), addr, time.Second))

	l.Close()
	err = WaitForTCP(context.Background(), addr, 300*time.Millisecond)
	assert.ErrorContains(t, err, "could not be reached")
}

func TestHashAPIKey(t *testing.T) {
	// sha256("secret")
	assert.Equal(t, HashAPIKey("secret"),
		"2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b")
	assert.Assert(t, HashAPIKey("a") != HashAPIKey("b"))
}
