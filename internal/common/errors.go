// Copyright 2024 SnmpFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"errors"
	"fmt"
)

// Filesystem error taxonomy. Every remote result code is translated into
// one of these before it leaves the probe call site.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotDir          = errors.New("not a directory")
	ErrIsDir           = errors.New("is a directory")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBufferTooSmall  = errors.New("buffer too small")
	ErrPermission      = errors.New("permission denied")
	ErrSecurity        = errors.New("security fault")
	ErrServerFault     = errors.New("server fault")
	ErrTransport       = errors.New("transport error")
	ErrReadOnly        = errors.New("read-only filesystem")
)

// StatusError carries the remote result code that produced a taxonomy
// error. It unwraps to the sentinel, so errors.Is(err, ErrNotFound) works.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (remote status %d)", e.Err, e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means "no object at this address".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFault reports whether err is anything other than a not-found outcome.
func IsFault(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound)
}
