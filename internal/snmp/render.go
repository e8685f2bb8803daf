package snmp

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"snmpfs/internal/oid"
)

// Render formats a variable as file content: one value followed by a
// newline, like a /proc file.
func Render(v *Variable) string {
	if v == nil {
		return "(null object)\n"
	}
	switch v.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Uinteger32, gosnmp.Counter64:
		return gosnmp.ToBigInt(v.Value).String() + "\n"

	case gosnmp.OctetString:
		return string(bytesOf(v.Value)) + "\n"

	case gosnmp.ObjectIdentifier:
		s, _ := v.Value.(string)
		return strings.TrimPrefix(s, ".") + "\n"

	case gosnmp.IPAddress:
		return ipString(v.Value) + "\n"

	case gosnmp.TimeTicks:
		ticks := gosnmp.ToBigInt(v.Value).Uint64()
		return fmt.Sprintf("%d (%s)\n", ticks, formatTimeTicks(ticks))

	case gosnmp.Opaque:
		return hex.EncodeToString(bytesOf(v.Value)) + "\n"

	case gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		return fmt.Sprintf("%f\n", v.Value)

	case gosnmp.Null:
		return "(null object)\n"
	}
	return fmt.Sprintf("(unsupported object type %#X)\n", byte(v.Type))
}

// formatTimeTicks renders hundredths of a second as "D days, HH:MM:SS.hh".
func formatTimeTicks(tt uint64) string {
	days := tt / 8640000
	tt %= 8640000
	hours := tt / 360000
	tt %= 360000
	minutes := tt / 6000
	tt %= 6000
	seconds := tt / 100
	return fmt.Sprintf("%d days, %02d:%02d:%02d.%02d", days, hours, minutes, seconds, tt%100)
}

func bytesOf(v interface{}) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

func ipString(v interface{}) string {
	switch ip := v.(type) {
	case string:
		return ip
	case []byte:
		if len(ip) == 4 {
			return net.IP(ip).String()
		}
	}
	return fmt.Sprint(v)
}

// ParseValue converts the text written to a leaf into a typed value of the
// given syntax. Surrounding whitespace (the trailing newline editors add)
// is ignored.
func ParseValue(text string, typ gosnmp.Asn1BER) (Value, error) {
	s := strings.TrimSpace(text)
	switch typ {
	case gosnmp.Integer:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("integer %q: %w", s, err)
		}
		return Value{Type: typ, Value: int(n)}, nil

	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Uinteger32, gosnmp.TimeTicks:
		// Accept the rendered timeticks form "N (D days, ...)".
		if i := strings.IndexByte(s, ' '); i > 0 && typ == gosnmp.TimeTicks {
			s = s[:i]
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("unsigned %q: %w", s, err)
		}
		return Value{Type: typ, Value: uint32(n)}, nil

	case gosnmp.Counter64:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok || !n.IsUint64() {
			return Value{}, fmt.Errorf("counter64 %q: invalid", s)
		}
		return Value{Type: typ, Value: n.Uint64()}, nil

	case gosnmp.IPAddress:
		ip := net.ParseIP(s).To4()
		if ip == nil {
			return Value{}, fmt.Errorf("ip address %q: invalid", s)
		}
		return Value{Type: typ, Value: ip.String()}, nil

	case gosnmp.ObjectIdentifier:
		p, err := oid.Parse(s)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typ, Value: "." + p.String()}, nil

	case gosnmp.Opaque:
		b, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("opaque %q: %w", s, err)
		}
		return Value{Type: typ, Value: b}, nil
	}
	// Octet strings keep inner whitespace; only the line ending goes.
	return Value{Type: gosnmp.OctetString, Value: []byte(strings.TrimRight(text, "\r\n"))}, nil
}
