/*
	launchpad-bootloader
	Copyright (c) 2023 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package attributes

import (
	"fmt"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// source is the YAML description of an attribute block:
//
//	version: 1.1.0
//	attributes:
//	  - key: board
//	    value: stellaris launchpad
type source struct {
	Version    string `yaml:"version"`
	Attributes []struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	} `yaml:"attributes"`
}

// Load builds a block from its YAML description. Attributes fill the
// table in order, remaining slots stay blank.
func Load(data []byte) (*Block, error) {
	var src source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parsing attributes: %w", err)
	}
	if len(src.Attributes) > Slots {
		return nil, fmt.Errorf("%d attributes defined, the table holds %d", len(src.Attributes), Slots)
	}
	if src.Version == "" {
		src.Version = DefaultVersion
	}

	var table Table
	seen := map[string]bool{}
	for i, kv := range src.Attributes {
		if seen[kv.Key] {
			return nil, fmt.Errorf("attribute %q defined twice", kv.Key)
		}
		seen[kv.Key] = true
		a, err := New(kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}
		table[i] = a
	}
	return NewBlock(src.Version, &table)
}

// LoadFile builds a block from a YAML file.
func LoadFile(file *paths.Path) (*Block, error) {
	data, err := file.ReadFile()
	if err != nil {
		return nil, err
	}
	b, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	logrus.Debugf("Loaded attribute block version %s from %s", b.VersionString(), file)
	return b, nil
}
