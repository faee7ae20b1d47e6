// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// BootstrapClusterName is the cluster name written into a synthesized
// bootstrap config. The controller replaces it with the real name in
// the fetched bundle.
const BootstrapClusterName = "configless"

// Endpoint is a controller host and optional port. Port zero means the
// caller should use the configured or default controller port.
type Endpoint struct {
	Host string
	Port uint16
}

// Address returns host:port, substituting defaultPort when the
// endpoint carries none.
func (e Endpoint) Address(defaultPort uint16) string {
	port := e.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(int(port)))
}

func (e Endpoint) String() string {
	if e.Port == 0 {
		return e.Host
	}
	return e.Address(e.Port)
}

// BootstrapConfig renders the minimal main config that points the
// config loader at this controller.
func (e Endpoint) BootstrapConfig() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "ClusterName=%s\n", BootstrapClusterName)
	fmt.Fprintf(&builder, "SlurmctldHost=%s\n", e.Host)
	if e.Port != 0 {
		fmt.Fprintf(&builder, "SlurmctldPort=%d\n", e.Port)
	}
	return builder.String()
}

// ParseStatic splits a configured controller address into host and
// optional port. Accepted forms are "host", "host:port", "[v6]:port",
// and a bare IPv6 literal.
func ParseStatic(address string) (Endpoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Endpoint{}, fmt.Errorf("locator: empty controller address")
	}

	// A bare IPv6 literal has several colons and no brackets.
	if !strings.Contains(address, ":") || (strings.Count(address, ":") > 1 && !strings.HasPrefix(address, "[")) {
		return Endpoint{Host: address}, nil
	}

	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		return Endpoint{}, fmt.Errorf("locator: parsing controller address %q: %w", address, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("locator: controller address %q has no host", address)
	}
	port, err := strconv.ParseUint(portText, 10, 16)
	if err != nil || port == 0 {
		return Endpoint{}, fmt.Errorf("locator: controller address %q has invalid port %q", address, portText)
	}
	return Endpoint{Host: host, Port: uint16(port)}, nil
}
