package snmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gosnmp/gosnmp"
	log "github.com/sirupsen/logrus"

	"snmpfs/internal/oid"
	"snmpfs/internal/util"
)

// AgentConfig describes how to reach the remote agent.
type AgentConfig struct {
	Address   string
	Port      uint16
	Version   string // "1", "2c" or "3"
	Community string
	Timeout   time.Duration
	Retries   int

	// USM parameters, used with Version "3".
	Username   string
	AuthProto  string // "", "md5", "sha", "sha256", "sha512"
	AuthPhrase string
	PrivProto  string // "", "des", "aes", "aes256"
	PrivPhrase string
}

// Agent is a Session backed by gosnmp.
type Agent struct {
	conn   *gosnmp.GoSNMP
	broken atomic.Bool
}

var _ Session = (*Agent)(nil)

// Dial connects to the agent, retrying transient transport failures.
func Dial(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	conn, err := newGoSNMP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	err = util.Retry(ctx, conn.Connect)
	if err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", cfg.Address, cfg.Port, err)
	}
	log.WithFields(log.Fields{
		"target":  cfg.Address,
		"port":    cfg.Port,
		"version": cfg.Version,
	}).Debug("snmp: session opened")
	return &Agent{conn: conn}, nil
}

func newGoSNMP(ctx context.Context, cfg AgentConfig) (*gosnmp.GoSNMP, error) {
	conn := &gosnmp.GoSNMP{
		Target:    cfg.Address,
		Port:      cfg.Port,
		Transport: "udp",
		Community: cfg.Community,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		Context:   ctx,
		MaxOids:   gosnmp.MaxOids,
	}
	if conn.Port == 0 {
		conn.Port = 161
	}
	if conn.Timeout == 0 {
		conn.Timeout = 2 * time.Second
	}

	switch strings.ToLower(cfg.Version) {
	case "1", "v1":
		conn.Version = gosnmp.Version1
	case "", "2c", "v2c":
		conn.Version = gosnmp.Version2c
	case "3", "v3":
		conn.Version = gosnmp.Version3
		usm, flags, err := usmParameters(cfg)
		if err != nil {
			return nil, err
		}
		conn.SecurityModel = gosnmp.UserSecurityModel
		conn.MsgFlags = flags
		conn.SecurityParameters = usm
	default:
		return nil, fmt.Errorf("unsupported snmp version %q", cfg.Version)
	}
	return conn, nil
}

func usmParameters(cfg AgentConfig) (*gosnmp.UsmSecurityParameters, gosnmp.SnmpV3MsgFlags, error) {
	usm := &gosnmp.UsmSecurityParameters{
		UserName:                 cfg.Username,
		AuthenticationProtocol:   gosnmp.NoAuth,
		AuthenticationPassphrase: cfg.AuthPhrase,
		PrivacyProtocol:          gosnmp.NoPriv,
		PrivacyPassphrase:        cfg.PrivPhrase,
	}

	switch strings.ToLower(cfg.AuthProto) {
	case "":
	case "md5":
		usm.AuthenticationProtocol = gosnmp.MD5
	case "sha":
		usm.AuthenticationProtocol = gosnmp.SHA
	case "sha256":
		usm.AuthenticationProtocol = gosnmp.SHA256
	case "sha512":
		usm.AuthenticationProtocol = gosnmp.SHA512
	default:
		return nil, 0, fmt.Errorf("unsupported auth protocol %q", cfg.AuthProto)
	}

	switch strings.ToLower(cfg.PrivProto) {
	case "":
	case "des":
		usm.PrivacyProtocol = gosnmp.DES
	case "aes":
		usm.PrivacyProtocol = gosnmp.AES
	case "aes256":
		usm.PrivacyProtocol = gosnmp.AES256
	default:
		return nil, 0, fmt.Errorf("unsupported privacy protocol %q", cfg.PrivProto)
	}

	switch {
	case usm.PrivacyProtocol != gosnmp.NoPriv:
		if usm.AuthenticationProtocol == gosnmp.NoAuth {
			return nil, 0, errors.New("privacy requires an auth protocol")
		}
		return usm, gosnmp.AuthPriv, nil
	case usm.AuthenticationProtocol != gosnmp.NoAuth:
		return usm, gosnmp.AuthNoPriv, nil
	default:
		return usm, gosnmp.NoAuthNoPriv, nil
	}
}

// GetExact implements Session.
func (a *Agent) GetExact(p oid.Path) Result {
	pkt, err := a.conn.Get([]string{"." + p.String()})
	return a.result("get", p, pkt, err)
}

// GetNext implements Session.
func (a *Agent) GetNext(p oid.Path) Result {
	pkt, err := a.conn.GetNext([]string{"." + p.String()})
	return a.result("getnext", p, pkt, err)
}

// Set implements Session.
func (a *Agent) Set(p oid.Path, v Value) Code {
	pdu := gosnmp.SnmpPDU{Name: "." + p.String(), Type: v.Type, Value: v.Value}
	pkt, err := a.conn.Set([]gosnmp.SnmpPDU{pdu})
	if err != nil {
		return a.clientCode("set", p, err)
	}
	return Code(pkt.Error)
}

// Broken reports whether a transport failure left the session unusable.
func (a *Agent) Broken() bool {
	return a.broken.Load()
}

// Close releases the underlying socket.
func (a *Agent) Close() error {
	if a.conn.Conn == nil {
		return nil
	}
	return a.conn.Conn.Close()
}

func (a *Agent) result(op string, p oid.Path, pkt *gosnmp.SnmpPacket, err error) Result {
	if err != nil {
		return Result{Code: a.clientCode(op, p, err)}
	}
	if pkt.Error != gosnmp.NoError {
		return Result{Code: Code(pkt.Error)}
	}
	if len(pkt.Variables) == 0 {
		return Result{Code: ClientBadParse}
	}

	pdu := pkt.Variables[0]
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return Result{Code: NoSuchName}
	}
	name, err := oid.Parse(pdu.Name)
	if err != nil {
		return Result{Code: ClientBadOID}
	}
	return Result{
		Code: NoError,
		Var:  &Variable{Name: name, Type: pdu.Type, Value: pdu.Value},
	}
}

func (a *Agent) clientCode(op string, p oid.Path, err error) Code {
	code := classifyClientError(err)
	if code == ClientTimeout || code == ClientConnection {
		a.broken.Store(true)
	}
	log.WithFields(log.Fields{
		"op":   op,
		"oid":  p.String(),
		"code": code.String(),
	}).WithError(err).Debug("snmp: request failed")
	return code
}

// classifyClientError maps a gosnmp client error to a client Code.
// gosnmp reports most failures as plain strings, so this matches text.
func classifyClientError(err error) Code {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClientTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClientTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClientConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ClientTimeout
	case strings.Contains(msg, "connection"), strings.Contains(msg, "not connected"):
		return ClientConnection
	case strings.Contains(msg, "decrypt"):
		return ClientDecryption
	case strings.Contains(msg, "authentic"), strings.Contains(msg, "digest"):
		return ClientAuthFailure
	case strings.Contains(msg, "security level"), strings.Contains(msg, "msgflags"):
		return ClientBadSecurityLevel
	case strings.Contains(msg, "security model"):
		return ClientUnknownSecurityModel
	case strings.Contains(msg, "unknown user"), strings.Contains(msg, "user name"):
		return ClientUnknownUser
	case strings.Contains(msg, "community"):
		return ClientBadCommunity
	case strings.Contains(msg, "too long"), strings.Contains(msg, "too big"):
		return ClientTooLong
	case strings.Contains(msg, "oid"):
		return ClientBadOID
	case strings.Contains(msg, "unmarshal"), strings.Contains(msg, "parse"), strings.Contains(msg, "decode"):
		return ClientBadParse
	}
	return ClientGeneric
}
