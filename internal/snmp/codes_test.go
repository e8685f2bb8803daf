package snmp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snmpfs/internal/common"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want error
	}{
		{TooBig, common.ErrBufferTooSmall},
		{ClientTooLong, common.ErrBufferTooSmall},
		{NoSuchName, common.ErrNotFound},
		{NoCreation, common.ErrNotFound},
		{InconsistentName, common.ErrNotFound},
		{ClientUnknownObjectID, common.ErrNotFound},
		{BadValue, common.ErrInvalidArgument},
		{WrongType, common.ErrInvalidArgument},
		{WrongLength, common.ErrInvalidArgument},
		{WrongEncoding, common.ErrInvalidArgument},
		{WrongValue, common.ErrInvalidArgument},
		{InconsistentValue, common.ErrInvalidArgument},
		{ClientBadValue, common.ErrInvalidArgument},
		{ClientRange, common.ErrInvalidArgument},
		{ClientBadOID, common.ErrInvalidArgument},
		{ReadOnly, common.ErrPermission},
		{NotWritable, common.ErrPermission},
		{AuthorizationError, common.ErrPermission},
		{NoAccess, common.ErrPermission},
		{ResourceUnavailable, common.ErrPermission},
		{ClientBadCommunity, common.ErrPermission},
		{ClientUnknownUser, common.ErrPermission},
		{ClientAuthFailure, common.ErrSecurity},
		{ClientDecryption, common.ErrSecurity},
		{ClientBadSecurityLevel, common.ErrSecurity},
		{ClientUnknownSecurityModel, common.ErrSecurity},
		{ClientTimeout, common.ErrTransport},
		{ClientConnection, common.ErrTransport},
		{GenErr, common.ErrServerFault},
		{CommitFailed, common.ErrServerFault},
		{UndoFailed, common.ErrServerFault},
		{ClientBadParse, common.ErrServerFault},
		{ClientGeneric, common.ErrServerFault},
		{Code(99), common.ErrServerFault},
		{Code(-99), common.ErrServerFault},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.code.String(), func(t *testing.T) {
			t.Parallel()
			err := Translate(tt.code)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *common.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, int(tt.code), se.Code)
		})
	}
}

func TestTranslateNoError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Translate(NoError))
}

func TestTranslateNotFoundIsNotAFault(t *testing.T) {
	t.Parallel()

	err := Translate(NoSuchName)
	assert.True(t, common.IsNotFound(err))
	assert.False(t, common.IsFault(err))

	err = Translate(ClientTimeout)
	assert.False(t, common.IsNotFound(err))
	assert.True(t, common.IsFault(err))
}

func TestCodeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "noSuchName", NoSuchName.String())
	assert.Equal(t, "timeout", ClientTimeout.String())
	assert.Equal(t, "code(42)", Code(42).String())
}
