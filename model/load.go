//    Copyright 2026 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML configuration file at the given path.
// Settings missing from the file keep their default value.
// The result is validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Failed to read config file '%s'", path)
	}
	conf, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Invalid config file '%s'", path)
	}
	return conf, nil
}

// ParseConfig parses a YAML encoded configuration on top of
// the default configuration and validates the result.
func ParseConfig(data []byte) (Config, error) {
	conf := DefaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, errors.Wrap(err, "Failed to parse config")
	}
	if err := conf.Validate(); err != nil {
		return Config{}, maskAny(err)
	}
	return conf, nil
}
