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

package vfs

import (
	"errors"
	"syscall"

	"snmpfs/internal/common"
)

// VFS error codes mapped to syscall errors
var (
	ENOENT    = syscall.ENOENT    // No such file or directory
	ENOTDIR   = syscall.ENOTDIR   // Not a directory
	EISDIR    = syscall.EISDIR    // Is a directory
	EINVAL    = syscall.EINVAL    // Invalid argument
	ERANGE    = syscall.ERANGE    // Result too large
	EIO       = syscall.EIO       // I/O error
	EACCES    = syscall.EACCES    // Permission denied
	EPERM     = syscall.EPERM     // Operation not permitted
	EROFS     = syscall.EROFS     // Read-only file system
	EBADF     = syscall.EBADF     // Bad file descriptor
	ETIMEDOUT = syscall.ETIMEDOUT // Agent unreachable
)

// ToErrno maps a taxonomy error to the errno the NFS front end reports.
// Errors outside the taxonomy become EIO.
func ToErrno(err error) syscall.Errno {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case errors.As(err, &errno):
		return errno
	case errors.Is(err, common.ErrNotFound):
		return ENOENT
	case errors.Is(err, common.ErrNotDir):
		return ENOTDIR
	case errors.Is(err, common.ErrIsDir):
		return EISDIR
	case errors.Is(err, common.ErrInvalidArgument):
		return EINVAL
	case errors.Is(err, common.ErrBufferTooSmall):
		return ERANGE
	case errors.Is(err, common.ErrPermission):
		return EACCES
	case errors.Is(err, common.ErrSecurity):
		return EPERM
	case errors.Is(err, common.ErrReadOnly):
		return EROFS
	case errors.Is(err, common.ErrTransport):
		return ETIMEDOUT
	}
	return EIO
}
