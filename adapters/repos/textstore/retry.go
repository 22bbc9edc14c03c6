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

package textstore

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 50 * time.Millisecond
)

// constantBackoff allows maxAttempts tries in total, interval apart.
func constantBackoff(maxAttempts int, interval time.Duration) backoff.BackOff {
	retries := 0
	if maxAttempts > 1 {
		retries = maxAttempts - 1
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries))
}
