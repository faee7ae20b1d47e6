// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ServiceName is the SRV label queried for the controller.
const ServiceName = "_slurmctld._tcp"

// DefaultResolvConf is where resolver settings are read from when none
// are supplied.
const DefaultResolvConf = "/etc/resolv.conf"

// ErrNoController is returned when no search-list expansion of
// ServiceName yields a usable SRV record.
var ErrNoController = errors.New("locator: no controller service record found")

// ResolverConfig controls the SRV query.
type ResolverConfig struct {
	// Servers are host:port addresses of recursive resolvers, tried in
	// order.
	Servers []string

	// Search is the domain search list appended to ServiceName.
	Search []string

	// Ndots is the number of dots a name needs before it is tried as
	// given ahead of the search list.
	Ndots int

	// Timeout bounds each exchange with one server.
	Timeout time.Duration

	// Attempts is how many times each server is tried per name.
	Attempts int
}

// LoadResolverConfig reads resolver settings in resolv.conf format.
func LoadResolverConfig(path string) (ResolverConfig, error) {
	clientConfig, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return ResolverConfig{}, fmt.Errorf("reading resolver config %s: %w", path, err)
	}
	servers := make([]string, 0, len(clientConfig.Servers))
	for _, server := range clientConfig.Servers {
		servers = append(servers, net.JoinHostPort(server, clientConfig.Port))
	}
	return ResolverConfig{
		Servers:  servers,
		Search:   clientConfig.Search,
		Ndots:    clientConfig.Ndots,
		Timeout:  time.Duration(clientConfig.Timeout) * time.Second,
		Attempts: clientConfig.Attempts,
	}, nil
}

// Locator resolves the controller endpoint.
type Locator struct {
	resolver ResolverConfig
	logger   *slog.Logger
}

func New(resolver ResolverConfig, logger *slog.Logger) *Locator {
	if resolver.Timeout <= 0 {
		resolver.Timeout = 5 * time.Second
	}
	if resolver.Attempts <= 0 {
		resolver.Attempts = 1
	}
	return &Locator{resolver: resolver, logger: logger}
}

// Locate returns the controller endpoint. A non-empty static address
// is parsed with no network access; an empty one triggers the SRV
// lookup.
func (l *Locator) Locate(ctx context.Context, static string) (Endpoint, error) {
	if static != "" {
		return ParseStatic(static)
	}
	return l.lookup(ctx)
}

func (l *Locator) lookup(ctx context.Context) (Endpoint, error) {
	if len(l.resolver.Servers) == 0 {
		return Endpoint{}, fmt.Errorf("locator: no DNS servers configured")
	}

	searchConfig := &dns.ClientConfig{Search: l.resolver.Search, Ndots: l.resolver.Ndots}
	var lastErr error
	for _, name := range searchConfig.NameList(ServiceName) {
		records, err := l.query(ctx, name)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if endpoint, ok := selectEndpoint(records); ok {
			l.logger.Info("controller located via DNS",
				"name", name,
				"endpoint", endpoint.String(),
			)
			return endpoint, nil
		}
		l.logger.Debug("no usable SRV record", "name", name, "answers", len(records))
	}

	if lastErr != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrNoController, lastErr)
	}
	return Endpoint{}, ErrNoController
}

// query asks each server in turn for name's SRV records. An NXDOMAIN
// answer is authoritative and ends the search for this name.
func (l *Locator) query(ctx context.Context, name string) ([]dns.RR, error) {
	request := new(dns.Msg)
	request.SetQuestion(name, dns.TypeSRV)
	request.RecursionDesired = true

	var lastErr error
	for attempt := 0; attempt < l.resolver.Attempts; attempt++ {
		for _, server := range l.resolver.Servers {
			response, err := l.exchange(ctx, request, server)
			if err != nil {
				lastErr = err
				l.logger.Debug("SRV query failed", "name", name, "server", server, "error", err)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			switch response.Rcode {
			case dns.RcodeSuccess:
				return response.Answer, nil
			case dns.RcodeNameError:
				return nil, nil
			default:
				lastErr = fmt.Errorf("%s from %s: %s", name, server, dns.RcodeToString[response.Rcode])
			}
		}
	}
	return nil, lastErr
}

// exchange sends one query over UDP and retries over TCP when the
// answer was truncated.
func (l *Locator) exchange(ctx context.Context, request *dns.Msg, server string) (*dns.Msg, error) {
	client := &dns.Client{Net: "udp", Timeout: l.resolver.Timeout}
	response, _, err := client.ExchangeContext(ctx, request, server)
	if err != nil {
		return nil, err
	}
	if response.Truncated {
		client.Net = "tcp"
		response, _, err = client.ExchangeContext(ctx, request, server)
		if err != nil {
			return nil, err
		}
	}
	return response, nil
}

// selectEndpoint picks the SRV answer with the lowest priority value.
// A later answer with an equal priority replaces an earlier one.
// Non-SRV answers and the "." target (service explicitly unavailable)
// are skipped.
func selectEndpoint(records []dns.RR) (Endpoint, bool) {
	var best *dns.SRV
	for _, record := range records {
		srv, ok := record.(*dns.SRV)
		if !ok || srv.Target == "." || srv.Target == "" {
			continue
		}
		if best == nil || srv.Priority <= best.Priority {
			best = srv
		}
	}
	if best == nil {
		return Endpoint{}, false
	}
	return Endpoint{
		Host: strings.TrimSuffix(best.Target, "."),
		Port: best.Port,
	}, true
}

