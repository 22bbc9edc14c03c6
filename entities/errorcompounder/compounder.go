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

package errorcompounder

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCompounder collects the errors of several attempts at the same
// operation. Every collected error stays reachable through errors.Is and
// errors.As on the compound error.
type ErrorCompounder interface {
	Add(err error)
	Addf(format string, a ...any)
	AddWrapf(err error, format string, a ...any)

	Empty() bool
	Len() int

	First() error
	Last() error
	ToError() error
}

// ----------------------------------------------------------------------------

func New() *errorCompounder {
	return &errorCompounder{}
}

type errorCompounder struct {
	errors []error
}

func (ec *errorCompounder) Add(err error) {
	if err != nil {
		ec.errors = append(ec.errors, err)
	}
}

func (ec *errorCompounder) Addf(format string, a ...any) {
	ec.errors = append(ec.errors, fmt.Errorf(format, a...))
}

func (ec *errorCompounder) AddWrapf(err error, format string, a ...any) {
	if err != nil {
		ec.errors = append(ec.errors, errors.Wrapf(err, format, a...))
	}
}

func (ec *errorCompounder) Len() int {
	return len(ec.errors)
}

func (ec *errorCompounder) Empty() bool {
	return len(ec.errors) == 0
}

func (ec *errorCompounder) First() error {
	if ec.Empty() {
		return nil
	}
	return ec.errors[0]
}

func (ec *errorCompounder) Last() error {
	if ec.Empty() {
		return nil
	}
	return ec.errors[len(ec.errors)-1]
}

func (ec *errorCompounder) ToError() error {
	if ec.Empty() {
		return nil
	}
	if len(ec.errors) == 1 {
		return ec.errors[0]
	}

	errs := make([]error, len(ec.errors))
	copy(errs, ec.errors)
	return &compound{errors: errs}
}

// ----------------------------------------------------------------------------

type compound struct {
	errors []error
}

func (c *compound) Error() string {
	var b strings.Builder
	for i, err := range c.errors {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (c *compound) Unwrap() []error {
	return c.errors
}
