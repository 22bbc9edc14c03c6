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
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type MeteredReaderCallback func(read int64, nanoseconds int64)

type MeteredReader struct {
	r  io.Reader
	cb MeteredReaderCallback
}

// Read passes the read through to the underlying reader. On a successful read,
// it will trigger the attached callback and provide it with metrics. If no
// callback is set, it will ignore it.
func (m *MeteredReader) Read(p []byte) (n int, err error) {
	start := time.Now()
	n, err = m.r.Read(p)
	took := time.Since(start).Nanoseconds()
	if n > 0 && m.cb != nil {
		m.cb(int64(n), took)
	}

	return
}

func NewMeteredReader(r io.Reader, cb MeteredReaderCallback) *MeteredReader {
	return &MeteredReader{r: r, cb: cb}
}

type MeteredWriterCallback func(written int64)

type MeteredWriter struct {
	w  io.Writer
	cb MeteredWriterCallback
}

func (m *MeteredWriter) Write(p []byte) (n int, err error) {
	n, err = m.w.Write(p)
	if n > 0 && m.cb != nil {
		m.cb(int64(n))
	}

	return
}

func NewMeteredWriter(w io.Writer, cb MeteredWriterCallback) *MeteredWriter {
	return &MeteredWriter{w: w, cb: cb}
}

// WriteFile creates or truncates the file at path and writes content to it.
// The file is closed on every return path. It does not fsync.
func WriteFile(path, content string, perm os.FileMode) error {
	trackFileOp(opWrite)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "open file %q for writing", path)
	}

	w := NewMeteredWriter(f, trackBytesWritten)
	if _, err := io.WriteString(w, content); err != nil {
		f.Close()
		return errors.Wrapf(err, "write file %q", path)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close file %q", path)
	}
	return nil
}

// ReadNormalized reads the whole file and terminates every line with "\n",
// whatever line separator the file used.
func ReadNormalized(path string) (string, error) {
	trackFileOp(opRead)
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open file %q for reading", path)
	}
	defer f.Close()

	raw, err := io.ReadAll(NewMeteredReader(f, trackBytesRead))
	if err != nil {
		return "", errors.Wrapf(err, "read file %q", path)
	}

	return NormalizeLineSeparators(string(raw)), nil
}

func NormalizeLineSeparators(data string) string {
	if data == "" {
		return data
	}

	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	if !strings.HasSuffix(data, "\n") {
		data += "\n"
	}
	return data
}
