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

package snmp

import (
	"fmt"

	"snmpfs/internal/common"
)

// Code is a remote result code. Non-negative values are PDU error-status
// values as sent by the agent; negative values are raised by the client
// side of the session (timeouts, USM failures, encoding problems).
type Code int

// PDU error-status values (RFC 3416).
const (
	NoError             Code = 0
	TooBig              Code = 1
	NoSuchName          Code = 2
	BadValue            Code = 3
	ReadOnly            Code = 4
	GenErr              Code = 5
	NoAccess            Code = 6
	WrongType           Code = 7
	WrongLength         Code = 8
	WrongEncoding       Code = 9
	WrongValue          Code = 10
	NoCreation          Code = 11
	InconsistentValue   Code = 12
	ResourceUnavailable Code = 13
	CommitFailed        Code = 14
	UndoFailed          Code = 15
	AuthorizationError  Code = 16
	NotWritable         Code = 17
	InconsistentName    Code = 18
)

// Client-side codes.
const (
	ClientGeneric              Code = -1
	ClientTimeout              Code = -2
	ClientConnection           Code = -3
	ClientBadOID               Code = -4
	ClientTooLong              Code = -5
	ClientUnknownObjectID      Code = -6
	ClientBadValue             Code = -7
	ClientRange                Code = -8
	ClientBadCommunity         Code = -9
	ClientUnknownUser          Code = -10
	ClientAuthFailure          Code = -11
	ClientDecryption           Code = -12
	ClientBadSecurityLevel     Code = -13
	ClientUnknownSecurityModel Code = -14
	ClientBadParse             Code = -15
)

var codeNames = map[Code]string{
	NoError:                    "noError",
	TooBig:                     "tooBig",
	NoSuchName:                 "noSuchName",
	BadValue:                   "badValue",
	ReadOnly:                   "readOnly",
	GenErr:                     "genErr",
	NoAccess:                   "noAccess",
	WrongType:                  "wrongType",
	WrongLength:                "wrongLength",
	WrongEncoding:              "wrongEncoding",
	WrongValue:                 "wrongValue",
	NoCreation:                 "noCreation",
	InconsistentValue:          "inconsistentValue",
	ResourceUnavailable:        "resourceUnavailable",
	CommitFailed:               "commitFailed",
	UndoFailed:                 "undoFailed",
	AuthorizationError:         "authorizationError",
	NotWritable:                "notWritable",
	InconsistentName:           "inconsistentName",
	ClientGeneric:              "client error",
	ClientTimeout:              "timeout",
	ClientConnection:           "connection failure",
	ClientBadOID:               "bad object identifier",
	ClientTooLong:              "message too long",
	ClientUnknownObjectID:      "unknown object identifier",
	ClientBadValue:             "bad value",
	ClientRange:                "value out of range",
	ClientBadCommunity:         "bad community",
	ClientUnknownUser:          "unknown user",
	ClientAuthFailure:          "authentication failure",
	ClientDecryption:           "decryption failure",
	ClientBadSecurityLevel:     "unsupported security level",
	ClientUnknownSecurityModel: "unknown security model",
	ClientBadParse:             "unparsable response",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Translate maps a remote result code to the filesystem error taxonomy.
// NoError yields nil; every other code yields a *common.StatusError.
func Translate(c Code) error {
	var kind error
	switch c {
	case NoError:
		return nil

	case TooBig, ClientTooLong:
		kind = common.ErrBufferTooSmall

	case NoSuchName, NoCreation, InconsistentName, ClientUnknownObjectID:
		kind = common.ErrNotFound

	case BadValue, WrongType, WrongLength, WrongEncoding, WrongValue,
		InconsistentValue, ClientBadValue, ClientRange, ClientBadOID:
		kind = common.ErrInvalidArgument

	case ReadOnly, NotWritable, AuthorizationError, NoAccess,
		ResourceUnavailable, ClientBadCommunity, ClientUnknownUser:
		kind = common.ErrPermission

	case ClientAuthFailure, ClientDecryption, ClientBadSecurityLevel,
		ClientUnknownSecurityModel:
		kind = common.ErrSecurity

	case ClientTimeout, ClientConnection:
		kind = common.ErrTransport

	default:
		// GenErr, CommitFailed, UndoFailed, ClientBadParse and anything
		// we do not recognise.
		kind = common.ErrServerFault
	}
	return &common.StatusError{Code: int(c), Err: kind}
}
