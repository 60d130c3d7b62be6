package analysis

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identifier is an EFI_GUID: {Data1, Data2, Data3, Data4[8]}. In memory the
// first three fields are little-endian.
type Identifier struct {
	Name  string
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Protocols registered by SMM drivers to install software SMI handlers.
var (
	SmmSwDispatchProtocol = Identifier{
		Name:  "EFI_SMM_SW_DISPATCH_PROTOCOL_GUID",
		Data1: 0xe541b773,
		Data2: 0xdd11,
		Data3: 0x420c,
		Data4: [8]byte{0xb0, 0x26, 0xdf, 0x99, 0x36, 0x53, 0xf8, 0xbf},
	}
	SmmSwDispatch2Protocol = Identifier{
		Name:  "EFI_SMM_SW_DISPATCH2_PROTOCOL_GUID",
		Data1: 0x18a3c6dc,
		Data2: 0x5eea,
		Data3: 0x48c8,
		Data4: [8]byte{0xa1, 0xc1, 0xb5, 0x33, 0x89, 0xf9, 0x89, 0x99},
	}
)

// SwDispatchCatalog lists both revisions of the software SMI dispatch protocol.
var SwDispatchCatalog = []Identifier{SmmSwDispatchProtocol, SmmSwDispatch2Protocol}

// ParseIdentifier parses the registry form "E541B773-DD11-420C-B026-DF993653F8BF".
func ParseIdentifier(name, s string) (Identifier, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("parse identifier %s: %w", name, err)
	}
	id := Identifier{
		Name:  name,
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
	}
	copy(id.Data4[:], u[8:])
	return id, nil
}

// Bytes returns the identifier as it is laid out in an image.
func (id Identifier) Bytes() [IdentifierSize]byte {
	var b [IdentifierSize]byte
	binary.LittleEndian.PutUint32(b[0:4], id.Data1)
	binary.LittleEndian.PutUint16(b[4:6], id.Data2)
	binary.LittleEndian.PutUint16(b[6:8], id.Data3)
	copy(b[8:], id.Data4[:])
	return b
}

// UUID returns the identifier in RFC 4122 byte order.
func (id Identifier) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], id.Data1)
	binary.BigEndian.PutUint16(u[4:6], id.Data2)
	binary.BigEndian.PutUint16(u[6:8], id.Data3)
	copy(u[8:], id.Data4[:])
	return u
}

func (id Identifier) String() string {
	return strings.ToUpper(id.UUID().String())
}
