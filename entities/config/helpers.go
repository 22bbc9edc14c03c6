//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package config

import (
	"strings"
)

// Enabled parses the boolean-ish values accepted in environment variables.
func Enabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "enabled", "1", "true":
		return true
	default:
		return false
	}
}

// Disabled is true only for explicit opt-outs, so that unset values keep
// their default.
func Disabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "off", "disabled", "0", "false":
		return true
	default:
		return false
	}
}
