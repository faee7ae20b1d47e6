// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"strings"
	"testing"
)

func TestParseStatic(t *testing.T) {
	tests := []struct {
		address string
		want    Endpoint
		wantErr bool
	}{
		{address: "ctrl1:7002", want: Endpoint{Host: "ctrl1", Port: 7002}},
		{address: "ctrl1", want: Endpoint{Host: "ctrl1"}},
		{address: " ctrl1.example.org ", want: Endpoint{Host: "ctrl1.example.org"}},
		{address: "10.1.2.3:6817", want: Endpoint{Host: "10.1.2.3", Port: 6817}},
		{address: "[fd00::1]:7002", want: Endpoint{Host: "fd00::1", Port: 7002}},
		{address: "fd00::1", want: Endpoint{Host: "fd00::1"}},
		{address: "", wantErr: true},
		{address: ":7002", wantErr: true},
		{address: "ctrl1:http", wantErr: true},
		{address: "ctrl1:0", wantErr: true},
		{address: "ctrl1:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := ParseStatic(tt.address)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatic(%q) = %+v, want error", tt.address, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatic(%q): %v", tt.address, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatic(%q) = %+v, want %+v", tt.address, got, tt.want)
			}
		})
	}
}

func TestBootstrapConfig(t *testing.T) {
	withPort := Endpoint{Host: "ctrl1", Port: 7002}.BootstrapConfig()
	for _, line := range []string{"ClusterName=configless", "SlurmctldHost=ctrl1", "SlurmctldPort=7002"} {
		if !strings.Contains(withPort, line+"\n") {
			t.Errorf("bootstrap config missing %q:\n%s", line, withPort)
		}
	}

	withoutPort := Endpoint{Host: "ctrl1"}.BootstrapConfig()
	if strings.Contains(withoutPort, "SlurmctldPort") {
		t.Errorf("bootstrap config without port mentions SlurmctldPort:\n%s", withoutPort)
	}
}

func TestEndpointAddress(t *testing.T) {
	if got := (Endpoint{Host: "ctrl1"}).Address(6817); got != "ctrl1:6817" {
		t.Errorf("Address = %q", got)
	}
	if got := (Endpoint{Host: "fd00::1", Port: 7002}).Address(6817); got != "[fd00::1]:7002" {
		t.Errorf("Address = %q", got)
	}
}
