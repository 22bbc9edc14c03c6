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

package diskio

import (
	"github.com/weaviate/diskstate/usecases/monitoring"
)

const (
	opFsync    = "fsync"
	opMkdir    = "mkdir"
	opDelete   = "delete"
	opRename   = "rename"
	opLink     = "link"
	opCopy     = "copy"
	opRead     = "read"
	opWrite    = "write"
	opAccess   = "access"
	opChecksum = "checksum"
)

func trackFileOp(operation string) {
	monitoring.GetMetrics().FileOp(operation)
}

func trackBytesWritten(n int64) {
	monitoring.GetMetrics().BytesWritten(n)
}

func trackBytesRead(n int64, _ int64) {
	monitoring.GetMetrics().BytesRead(n)
}
