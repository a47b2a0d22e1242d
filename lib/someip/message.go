// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package someip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the fixed SOME/IP header length. The Length field
// counts everything after its own position: the 8 header bytes from
// request ID onward plus the payload.
const HeaderSize = 16

// ProtocolVersion is the only SOME/IP protocol version accepted.
const ProtocolVersion = 0x01

// MaxMessageSize bounds a single message on a TCP stream.
const MaxMessageSize = 1 << 20

var (
	// ErrShortMessage is returned when fewer bytes are available than
	// the header or its Length field requires.
	ErrShortMessage = errors.New("someip: short message")

	// ErrBadLength is returned when the Length field is below the
	// minimum of 8 or above MaxMessageSize.
	ErrBadLength = errors.New("someip: bad length field")

	// ErrProtocolVersion is returned for messages not using
	// ProtocolVersion.
	ErrProtocolVersion = errors.New("someip: unsupported protocol version")
)

// MessageType is the SOME/IP message type byte.
type MessageType uint8

const (
	TypeRequest         MessageType = 0x00
	TypeRequestNoReturn MessageType = 0x01
	TypeNotification    MessageType = 0x02
	TypeResponse        MessageType = 0x80
	TypeError           MessageType = 0x81

	// tpFlag marks SOME/IP-TP segments, which are not reassembled.
	tpFlag MessageType = 0x20
)

func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "REQUEST"
	case TypeRequestNoReturn:
		return "REQUEST_NO_RETURN"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeResponse:
		return "RESPONSE"
	case TypeError:
		return "ERROR"
	}
	if t&tpFlag != 0 {
		return fmt.Sprintf("TP(%s)", (t &^ tpFlag).String())
	}
	return fmt.Sprintf("0x%02x", uint8(t))
}

// Header is a decoded SOME/IP header.
type Header struct {
	Service          uint16
	Method           uint16
	Length           uint32
	Client           uint16
	Session          uint16
	ProtocolVersion  uint8
	InterfaceVersion uint8
	Type             MessageType
	ReturnCode       uint8
}

// Message is a header and the payload it frames.
type Message struct {
	Header  Header
	Payload []byte
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortMessage, len(data), HeaderSize)
	}
	header := Header{
		Service:          binary.BigEndian.Uint16(data[0:2]),
		Method:           binary.BigEndian.Uint16(data[2:4]),
		Length:           binary.BigEndian.Uint32(data[4:8]),
		Client:           binary.BigEndian.Uint16(data[8:10]),
		Session:          binary.BigEndian.Uint16(data[10:12]),
		ProtocolVersion:  data[12],
		InterfaceVersion: data[13],
		Type:             MessageType(data[14]),
		ReturnCode:       data[15],
	}
	if header.Length < 8 || header.Length > MaxMessageSize {
		return Header{}, fmt.Errorf("%w: %d", ErrBadLength, header.Length)
	}
	if header.ProtocolVersion != ProtocolVersion {
		return Header{}, fmt.Errorf("%w: 0x%02x", ErrProtocolVersion, header.ProtocolVersion)
	}
	return header, nil
}

// ParseMessage decodes the first message in data and returns the
// bytes following it. The payload aliases data.
func ParseMessage(data []byte) (Message, []byte, error) {
	header, err := parseHeader(data)
	if err != nil {
		return Message{}, nil, err
	}
	total := 8 + int(header.Length)
	if len(data) < total {
		return Message{}, nil, fmt.Errorf("%w: header announces %d bytes, %d available", ErrShortMessage, total, len(data))
	}
	return Message{Header: header, Payload: data[HeaderSize:total]}, data[total:], nil
}

// ReadMessage reads exactly one message from a stream. The payload is
// freshly allocated.
func ReadMessage(reader io.Reader) (Message, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(reader, raw[:]); err != nil {
		return Message{}, err
	}
	header, err := parseHeader(raw[:])
	if err != nil {
		return Message{}, err
	}
	payload := make([]byte, int(header.Length)-8)
	if _, err := io.ReadFull(reader, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, fmt.Errorf("reading %d byte payload: %w", len(payload), err)
	}
	return Message{Header: header, Payload: payload}, nil
}

// AppendMessage encodes message onto dst. Length and ProtocolVersion
// are derived rather than taken from the header.
func AppendMessage(dst []byte, message Message) []byte {
	header := message.Header
	dst = binary.BigEndian.AppendUint16(dst, header.Service)
	dst = binary.BigEndian.AppendUint16(dst, header.Method)
	dst = binary.BigEndian.AppendUint32(dst, uint32(8+len(message.Payload)))
	dst = binary.BigEndian.AppendUint16(dst, header.Client)
	dst = binary.BigEndian.AppendUint16(dst, header.Session)
	dst = append(dst, ProtocolVersion, header.InterfaceVersion, byte(header.Type), header.ReturnCode)
	return append(dst, message.Payload...)
}
