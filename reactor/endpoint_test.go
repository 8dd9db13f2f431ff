// File: reactor/endpoint_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"

	"github.com/momentics/hioload-aio/api"
)

func TestEndpointSetBounds(t *testing.T) {
	var e Endpoint
	if err := e.Set(make([]byte, EndpointCapacity)); err != nil {
		t.Errorf("capacity-sized address rejected: %v", err)
	}
	if err := e.Set(make([]byte, EndpointCapacity+1)); err != api.ErrInvalidArgument {
		t.Errorf("expected ErrInvalidArgument on overflow, got %v", err)
	}
}

func TestEndpointStringInet4(t *testing.T) {
	raw := make([]byte, sizeInet4)
	raw[0] = familyInet4
	raw[2], raw[3] = 0x1f, 0x90 // port 8080
	raw[4], raw[5], raw[6], raw[7] = 127, 0, 0, 1
	var e Endpoint
	if err := e.Set(raw); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if got := e.String(); got != "127.0.0.1:8080" {
		t.Errorf("expected 127.0.0.1:8080, got %q", got)
	}
}
