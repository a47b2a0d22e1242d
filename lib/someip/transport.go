// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package someip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// TransportConfig is the subset of a vsomeip JSON configuration the
// client uses. The file may carry comments and trailing commas.
//
//	{
//	    "unicast": "192.168.1.10",
//	    "applications": [ { "name": "someip2val", "id": "0x1313" } ],
//	    "services": [
//	        // wiper status
//	        { "service": "0x60D0", "instance": "0x0001",
//	          "unreliable": "30509", "reliable": { "port": "30510" } },
//	    ],
//	}
type TransportConfig struct {
	Unicast      string            `json:"unicast"`
	Applications []ApplicationSpec `json:"applications"`
	Services     []ServiceSpec     `json:"services"`
}

// ApplicationSpec names one vsomeip application.
type ApplicationSpec struct {
	Name string `json:"name"`
	ID   Number `json:"id"`
}

// ServiceSpec binds a service instance to local ports. A zero port
// means the transport is not offered.
type ServiceSpec struct {
	Service    Number       `json:"service"`
	Instance   Number       `json:"instance"`
	Unreliable Number       `json:"unreliable"`
	Reliable   ReliableSpec `json:"reliable"`
}

// ReliableSpec is the TCP endpoint of a service.
type ReliableSpec struct {
	Port Number `json:"port"`
}

// Number is a 16-bit identifier or port written either as a JSON
// number or as a decimal or 0x-prefixed string.
type Number uint16

// UnmarshalJSON accepts 30509, "30509" and "0x772D".
func (n *Number) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}
	value, err := strconv.ParseUint(text, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid 16-bit number %s: %w", data, err)
	}
	*n = Number(value)
	return nil
}

// LoadTransportConfig reads and parses the configuration file at path.
// An unreadable file is reported as a *ConfigurationError.
func LoadTransportConfig(path string) (TransportConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TransportConfig{}, &ConfigurationError{Problems: []string{fmt.Sprintf("reading %s: %v", path, err)}}
	}
	return ParseTransportConfig(data)
}

// ParseTransportConfig parses configuration file content.
func ParseTransportConfig(data []byte) (TransportConfig, error) {
	var config TransportConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
		return TransportConfig{}, fmt.Errorf("parsing transport configuration: %w", err)
	}
	if config.Unicast != "" && net.ParseIP(config.Unicast) == nil {
		return TransportConfig{}, fmt.Errorf("transport configuration: unicast %q is not an IP address", config.Unicast)
	}
	for index, service := range config.Services {
		if service.Unreliable == 0 && service.Reliable.Port == 0 {
			return TransportConfig{}, fmt.Errorf("transport configuration: service %d (0x%04x) has no port", index, uint16(service.Service))
		}
	}
	return config, nil
}

// Instance returns the configured instance of service.
func (c TransportConfig) Instance(service uint16) (uint16, bool) {
	for _, spec := range c.Services {
		if uint16(spec.Service) == service {
			return uint16(spec.Instance), true
		}
	}
	return 0, false
}

// HasApplication reports whether name is declared in the file.
func (c TransportConfig) HasApplication(name string) bool {
	for _, application := range c.Applications {
		if application.Name == name {
			return true
		}
	}
	return false
}
