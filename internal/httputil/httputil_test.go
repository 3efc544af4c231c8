package httputil

import (
	"testing"
	"time"
)

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:32400", false},
		{"https://plex.example.com", false},
		{"", true},
		{"ftp://localhost", true},
		{"http://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		err := ValidateServerURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateServerURL(%q) err = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate([]byte("hello"), 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := Truncate([]byte("héllo world"), 5); got != "héllo..." {
		t.Errorf("got %q", got)
	}
}

func TestDrainBodyNil(t *testing.T) {
	DrainBody(nil)
}

func TestClientTimeouts(t *testing.T) {
	if got := NewClient().Timeout; got != DefaultTimeout {
		t.Errorf("NewClient timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := NewClientWithTimeout(3 * time.Second).Timeout; got != 3*time.Second {
		t.Errorf("NewClientWithTimeout timeout = %v, want 3s", got)
	}
}
