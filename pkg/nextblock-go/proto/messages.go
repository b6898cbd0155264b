package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages in this file mirror nextblock_stream.proto and are encoded by hand
// with protowire, so the package builds without a protoc toolchain.

type NextStreamSubscription struct {
	AuthenticationPublickey string
	AuthenticationMessage   string
	AuthenticationSignature string
	Accounts                []string
}

func (x *NextStreamSubscription) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, x.AuthenticationPublickey)
	b = appendString(b, 2, x.AuthenticationMessage)
	b = appendString(b, 3, x.AuthenticationSignature)
	for _, account := range x.Accounts {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, account)
	}
	return b, nil
}

func (x *NextStreamSubscription) UnmarshalWire(b []byte) error {
	*x = NextStreamSubscription{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType || num < 1 || num > 4 {
			return skipField(num, typ, b)
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		switch num {
		case 1:
			x.AuthenticationPublickey = v
		case 2:
			x.AuthenticationMessage = v
		case 3:
			x.AuthenticationSignature = v
		case 4:
			x.Accounts = append(x.Accounts, v)
		}
		return n, nil
	})
}

type NextStreamNotification struct {
	Packet *Packet
}

func (x *NextStreamNotification) GetPacket() *Packet {
	if x == nil {
		return nil
	}
	return x.Packet
}

func (x *NextStreamNotification) MarshalWire() ([]byte, error) {
	if x.Packet == nil {
		return nil, nil
	}
	packet, err := x.Packet.MarshalWire()
	if err != nil {
		return nil, err
	}
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(b, packet), nil
}

func (x *NextStreamNotification) UnmarshalWire(b []byte) error {
	*x = NextStreamNotification{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skipField(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		// repeated occurrences of an embedded message merge
		if x.Packet == nil {
			x.Packet = &Packet{}
		}
		if err := x.Packet.merge(v); err != nil {
			return 0, err
		}
		return n, nil
	})
}

type Packet struct {
	Slot        uint64
	Transaction []byte
	Index       *uint64
}

func (x *Packet) GetIndex() (uint64, bool) {
	if x == nil || x.Index == nil {
		return 0, false
	}
	return *x.Index, true
}

func (x *Packet) MarshalWire() ([]byte, error) {
	var b []byte
	if x.Slot != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, x.Slot)
	}
	if len(x.Transaction) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, x.Transaction)
	}
	if x.Index != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, *x.Index)
	}
	return b, nil
}

func (x *Packet) UnmarshalWire(b []byte) error {
	*x = Packet{}
	return x.merge(b)
}

func (x *Packet) merge(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			x.Slot = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			x.Transaction = append([]byte(nil), v...)
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			x.Index = &v
			return n, nil
		}
		return skipField(num, typ, b)
	})
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// walkFields calls fn for every field in b. fn consumes the field value and
// returns how many bytes it used.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("proto: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("proto: field %d: %w", num, err)
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
