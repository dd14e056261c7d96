// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

const (
	inetFamilyIPv4 = 2
	inetFamilyIPv6 = 3
)

// inetConverter: binary family(1) + bits(1) + is_cidr(1) + nb(1) + octets,
// per spec §4.2 "INET/CIDR". SQLite storage TEXT (CIDR textual form).
func inetConverter(oid OID, name string, isCIDR bool) *Converter {
	return &Converter{
		OID:      oid,
		Names:    []string{name},
		Class:    ClassText,
		Category: CategoryNetwork,
		TextEncode: func(v any) (string, error) { return asString(oid, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			prefix, perr := netip.ParsePrefix(s)
			var addr netip.Addr
			bits := 0
			if perr != nil {
				addr, err = netip.ParseAddr(s)
				if err != nil {
					return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: err.Error()}
				}
				bits = addr.BitLen()
			} else {
				addr = prefix.Addr()
				bits = prefix.Bits()
			}
			family := byte(inetFamilyIPv4)
			if addr.Is6() {
				family = inetFamilyIPv6
			}
			octets := addr.AsSlice()
			buf := []byte{family, byte(bits), boolByte(isCIDR), byte(len(octets))}
			buf = append(buf, octets...)
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) < 4 {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "truncated inet header"}
			}
			bits := int(b[1])
			nb := int(b[3])
			if len(b) != 4+nb {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "octet count mismatch"}
			}
			ip := net.IP(b[4:])
			maxBits := nb * 8
			if bits == maxBits {
				return ip.String(), nil
			}
			return fmt.Sprintf("%s/%d", ip.String(), bits), nil
		},
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// macaddrConverter: 6 or 8 raw bytes, per spec §4.2 "MACADDR/MACADDR8".
func macaddrConverter(oid OID, name string, length int) *Converter {
	return &Converter{
		OID:      oid,
		Names:    []string{name},
		Class:    ClassText,
		Category: CategoryUserType,
		TextEncode: func(v any) (string, error) { return asString(oid, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			hw, err := net.ParseMAC(s)
			if err != nil {
				return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: err.Error()}
			}
			if len(hw) != length {
				return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: fmt.Sprintf("expected %d byte address", length)}
			}
			return []byte(hw), nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != length {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: fmt.Sprintf("expected %d bytes", length)}
			}
			return net.HardwareAddr(b).String(), nil
		},
	}
}

// bitConverter: i32 bit count + packed bytes (MSB-first, padded), per spec
// §4.2 "BIT/VARBIT".
func bitConverter(oid OID, name string) *Converter {
	return &Converter{
		OID:      oid,
		Names:    []string{name},
		Class:    ClassText,
		Category: CategoryBitString,
		TextEncode: func(v any) (string, error) { return asString(oid, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			for _, r := range s {
				if r != '0' && r != '1' {
					return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not a binary string"}
				}
			}
			nbits := len(s)
			nbytes := (nbits + 7) / 8
			packed := make([]byte, nbytes)
			for i, r := range s {
				if r == '1' {
					packed[i/8] |= 1 << uint(7-i%8)
				}
			}
			buf := make([]byte, 4+nbytes)
			binary.BigEndian.PutUint32(buf[:4], uint32(nbits))
			copy(buf[4:], packed)
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) < 4 {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "truncated bit header"}
			}
			nbits := int(binary.BigEndian.Uint32(b[:4]))
			packed := b[4:]
			var sb strings.Builder
			for i := 0; i < nbits; i++ {
				if packed[i/8]&(1<<uint(7-i%8)) != 0 {
					sb.WriteByte('1')
				} else {
					sb.WriteByte('0')
				}
			}
			return sb.String(), nil
		},
	}
}

// moneyConverter: wire binary i64 cents; text "$x.yy", per spec §4.2
// "MONEY". SQLite storage INTEGER cents.
func moneyConverter() *Converter {
	return &Converter{
		OID:      OIDMoney,
		Names:    []string{"money"},
		Class:    ClassInteger,
		Category: CategoryNumeric,
		TextEncode: func(v any) (string, error) {
			cents, err := asInt64(OIDMoney, v)
			if err != nil {
				return "", err
			}
			neg := cents < 0
			if neg {
				cents = -cents
			}
			s := fmt.Sprintf("$%d.%02d", cents/100, cents%100)
			if neg {
				s = "-" + s
			}
			return s, nil
		},
		TextDecode: func(s string) (any, error) {
			cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
			f, err := strconv.ParseFloat(cleaned, 64)
			if err != nil {
				return nil, &ConversionError{OID: OIDMoney, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return int64(f*100 + sign(f)*0.5), nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			cents, err := asInt64(OIDMoney, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(cents))
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 8 {
				return nil, &ConversionError{OID: OIDMoney, Direction: DirDecode, Value: b, Reason: "expected 8 bytes"}
			}
			return int64(binary.BigEndian.Uint64(b)), nil
		},
	}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
