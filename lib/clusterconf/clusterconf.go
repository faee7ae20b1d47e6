// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

// Package clusterconf reads the cluster's main config file: lines of
// whitespace-separated Key=Value pairs with '#' comments. Keys are
// case-insensitive and a double-quoted value may contain spaces. An
// "Include <path>" line pulls in another file; ParseFile follows it
// relative to the including file's directory. Only the keys the node
// agent needs at bootstrap have typed accessors; everything else is
// reachable through Get.
package clusterconf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

const (
	DefaultSlurmctldPort = 6817
	DefaultSlurmdPort    = 6818
)

// maxIncludeDepth bounds nested Include lines, which also stops a file
// that includes itself.
const maxIncludeDepth = 8

// Config holds every key=value pair in file order.
type Config struct {
	values map[string][]string

	// includes lists Include targets in file order. Parse records them
	// without reading them.
	includes []string
}

// ParseFile reads and parses the config at path along with every file
// it includes.
func ParseFile(path string) (*Config, error) {
	config := &Config{values: make(map[string][]string)}
	if err := config.parseFile(path, 0); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) parseFile(path string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%s: includes nested deeper than %d", path, maxIncludeDepth)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening cluster config: %w", err)
	}
	defer file.Close()

	first := len(c.includes)
	if err := c.parse(file); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	// Included keys land after the including file's own keys.
	for _, include := range c.includes[first:] {
		if !filepath.IsAbs(include) {
			include = filepath.Join(filepath.Dir(path), include)
		}
		if err := c.parseFile(include, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Parse reads config text from reader. Include lines are recorded but
// not followed.
func Parse(reader io.Reader) (*Config, error) {
	config := &Config{values: make(map[string][]string)}
	if err := config.parse(reader); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) parse(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		fields, err := splitFields(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if len(fields) == 0 {
			continue
		}
		if strings.EqualFold(fields[0], "Include") {
			if len(fields) != 2 {
				return fmt.Errorf("line %d: Include takes one path", lineNumber)
			}
			c.includes = append(c.includes, fields[1])
			continue
		}
		for _, field := range fields {
			key, value, found := strings.Cut(field, "=")
			if !found || key == "" {
				return fmt.Errorf("line %d: expected Key=Value, got %q", lineNumber, field)
			}
			lower := strings.ToLower(key)
			c.values[lower] = append(c.values[lower], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading cluster config: %w", err)
	}
	return nil
}

// splitFields breaks line into whitespace-separated fields. Double
// quotes group text containing spaces and are removed. A '#' outside
// quotes starts a comment.
func splitFields(line string) ([]string, error) {
	var (
		fields  []string
		field   strings.Builder
		inField bool
		quoted  bool
	)
scan:
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inField = true
		case quoted:
			field.WriteRune(r)
		case r == '#':
			break scan
		case unicode.IsSpace(r):
			if inField {
				fields = append(fields, field.String())
				field.Reset()
				inField = false
			}
		default:
			field.WriteRune(r)
			inField = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inField {
		fields = append(fields, field.String())
	}
	return fields, nil
}

// Get returns the first value for key and whether it was set.
func (c *Config) Get(key string) (string, bool) {
	values := c.values[strings.ToLower(key)]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// All returns every value for key in file order.
func (c *Config) All(key string) []string {
	return c.values[strings.ToLower(key)]
}

func (c *Config) ClusterName() string {
	name, _ := c.Get("ClusterName")
	return name
}

// ControllerHosts returns the SlurmctldHost entries in order, primary
// first. An entry written as "name(address)" yields the address.
func (c *Config) ControllerHosts() []string {
	var hosts []string
	for _, value := range c.All("SlurmctldHost") {
		if open := strings.IndexByte(value, '('); open >= 0 && strings.HasSuffix(value, ")") {
			value = value[open+1 : len(value)-1]
		}
		if value != "" {
			hosts = append(hosts, value)
		}
	}
	return hosts
}

// ControllerAddresses returns host:port for every controller, primary
// first.
func (c *Config) ControllerAddresses() ([]string, error) {
	port, err := c.SlurmctldPort()
	if err != nil {
		return nil, err
	}
	hosts := c.ControllerHosts()
	if len(hosts) == 0 {
		return nil, errors.New("clusterconf: no SlurmctldHost configured")
	}
	addresses := make([]string, len(hosts))
	for i, host := range hosts {
		addresses[i] = net.JoinHostPort(host, strconv.Itoa(int(port)))
	}
	return addresses, nil
}

// SlurmctldPort returns the controller port. A range such as
// "6817-6820" yields its first port.
func (c *Config) SlurmctldPort() (uint16, error) {
	value, ok := c.Get("SlurmctldPort")
	if !ok {
		return DefaultSlurmctldPort, nil
	}
	first, _, _ := strings.Cut(value, "-")
	return parsePort("SlurmctldPort", first)
}

func (c *Config) SlurmdPort() (uint16, error) {
	value, ok := c.Get("SlurmdPort")
	if !ok {
		return DefaultSlurmdPort, nil
	}
	return parsePort("SlurmdPort", value)
}

// SlurmdSpoolDir returns the agent spool directory when the cluster
// config names one.
func (c *Config) SlurmdSpoolDir() (string, bool) {
	value, ok := c.Get("SlurmdSpoolDir")
	return value, ok && value != ""
}

func parsePort(key, value string) (uint16, error) {
	port, err := strconv.ParseUint(value, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%s: invalid port %q", key, value)
	}
	return uint16(port), nil
}
