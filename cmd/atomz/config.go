// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/SnellerInc/atompack/compr"

	"sigs.k8s.io/yaml"
)

// jsonCodec selects plain artifact JSON
// instead of a binary container.
const jsonCodec = "json"

// config holds defaults read from a
// YAML file; flags given on the command
// line take precedence.
type config struct {
	// Codec is "json" or one of compr.Names().
	Codec   string `json:"codec"`
	Verbose bool   `json:"verbose"`
	// Session shares one dictionary
	// across the documents given to stats.
	Session bool `json:"session"`
}

func defaultConfig() *config {
	return &config{Codec: jsonCodec}
}

func checkCodec(name string) error {
	if name == jsonCodec {
		return nil
	}
	for _, n := range compr.Names() {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("unknown codec %q (try %s or %s)", name, jsonCodec, strings.Join(compr.Names(), ", "))
}

// loadConfig reads the config at path,
// or at $ATOMZ_CONFIG when path is empty.
// With neither set it returns the defaults.
func loadConfig(path string) (*config, error) {
	if path == "" {
		path = os.Getenv("ATOMZ_CONFIG")
	}
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if c.Codec == "" {
		c.Codec = jsonCodec
	}
	if err := checkCodec(c.Codec); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}
