package snmp

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snmpfs/internal/oid"
)

func TestNewGoSNMPVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     AgentConfig
		version gosnmp.SnmpVersion
		flags   gosnmp.SnmpV3MsgFlags
		wantErr bool
	}{
		{"default is v2c", AgentConfig{Address: "localhost"}, gosnmp.Version2c, 0, false},
		{"v1", AgentConfig{Address: "localhost", Version: "1"}, gosnmp.Version1, 0, false},
		{"v3 noauth", AgentConfig{Address: "localhost", Version: "3", Username: "u"}, gosnmp.Version3, gosnmp.NoAuthNoPriv, false},
		{"v3 auth", AgentConfig{Address: "localhost", Version: "3", Username: "u", AuthProto: "sha", AuthPhrase: "secret12"}, gosnmp.Version3, gosnmp.AuthNoPriv, false},
		{"v3 authpriv", AgentConfig{Address: "localhost", Version: "3", Username: "u", AuthProto: "sha256", AuthPhrase: "secret12", PrivProto: "aes", PrivPhrase: "secret34"}, gosnmp.Version3, gosnmp.AuthPriv, false},
		{"v3 priv without auth", AgentConfig{Address: "localhost", Version: "3", PrivProto: "des"}, 0, 0, true},
		{"v3 bad auth", AgentConfig{Address: "localhost", Version: "3", AuthProto: "crc32"}, 0, 0, true},
		{"bad version", AgentConfig{Address: "localhost", Version: "4"}, 0, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn, err := newGoSNMP(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, conn.Version)
			assert.Equal(t, uint16(161), conn.Port)
			if tt.version == gosnmp.Version3 {
				assert.Equal(t, tt.flags, conn.MsgFlags)
				assert.Equal(t, gosnmp.UserSecurityModel, conn.SecurityModel)
			}
		})
	}
}

func TestClassifyClientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"timeout text", errors.New("request timeout (after 3 retries)"), ClientTimeout},
		{"deadline", context.DeadlineExceeded, ClientTimeout},
		{"op error", &net.OpError{Op: "read", Net: "udp", Err: errors.New("refused")}, ClientConnection},
		{"auth", errors.New("incoming packet is not authentic"), ClientAuthFailure},
		{"decrypt", errors.New("unable to decrypt"), ClientDecryption},
		{"parse", errors.New("unable to unmarshal response"), ClientBadParse},
		{"other", errors.New("surprise"), ClientGeneric},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyClientError(tt.err))
		})
	}
}

func TestAgentResult(t *testing.T) {
	t.Parallel()

	a := &Agent{conn: &gosnmp.GoSNMP{}}
	p := oid.MustParse("1.3.6.1.2.1.1.1.0")

	t.Run("value", func(t *testing.T) {
		pkt := &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{{Name: ".1.3.6.1.2.1.1.1.0", Type: gosnmp.OctetString, Value: []byte("x")}}}
		r := a.result("get", p, pkt, nil)
		require.Equal(t, NoError, r.Code)
		assert.Equal(t, p, r.Var.Name)
	})

	t.Run("exceptions map to noSuchName", func(t *testing.T) {
		for _, typ := range []gosnmp.Asn1BER{gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView} {
			pkt := &gosnmp.SnmpPacket{Variables: []gosnmp.SnmpPDU{{Name: ".1.3", Type: typ}}}
			assert.Equal(t, NoSuchName, a.result("get", p, pkt, nil).Code)
		}
	})

	t.Run("error status", func(t *testing.T) {
		pkt := &gosnmp.SnmpPacket{Error: gosnmp.GenErr}
		assert.Equal(t, GenErr, a.result("get", p, pkt, nil).Code)
	})

	t.Run("transport failure marks broken", func(t *testing.T) {
		b := &Agent{conn: &gosnmp.GoSNMP{}}
		r := b.result("get", p, nil, errors.New("request timeout"))
		assert.Equal(t, ClientTimeout, r.Code)
		assert.True(t, b.Broken())
	})
}
