// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/alecthomas/kong"
	"sigs.k8s.io/yaml"
)

// YAML is a kong.ConfigurationLoader for YAML files. Keys are flag names
// with dashes replaced by underscores:
//
//	root: /srv/data
//	snapshot: /var/lib/metawatch/metadata.csv
//	debounce_delay: 500ms
//	policy: quiet-period
func YAML(r io.Reader) (kong.Resolver, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if len(bytes.TrimSpace(bs)) == 0 {
		bs = []byte("{}")
	}
	js, err := yaml.YAMLToJSON(bs)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return kong.JSON(bytes.NewReader(js))
}
