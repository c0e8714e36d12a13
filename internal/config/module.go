// SPDX-License-Identifier: EPL-2.0

// Package config loads the YAML description of a mix session.
package config

import "go.uber.org/fx"

// Path is the location of the configuration file in the fx graph.
type Path string

// Module provides *Config from a supplied Path.
var Module = fx.Module("config",
	fx.Provide(func(p Path) (*Config, error) {
		return LoadConfig(string(p))
	}),
)
