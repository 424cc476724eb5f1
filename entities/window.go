package entities

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// WindowKey identifies one rank or reward computation: an inclusive block
// height range and the algorithm version it was computed with.
type WindowKey struct {
	Start   uint64
	End     uint64
	Version uint64
}

const windowKeyLength = 24

func (k WindowKey) Bytes() []byte {
	b := make([]byte, 0, windowKeyLength)
	b = binary.BigEndian.AppendUint64(b, k.Start)
	b = binary.BigEndian.AppendUint64(b, k.End)
	b = binary.BigEndian.AppendUint64(b, k.Version)
	return b
}

// Handle is the hex form handed out to callers polling for a result.
func (k WindowKey) Handle() string {
	return hex.EncodeToString(k.Bytes())
}

func (k WindowKey) String() string {
	return fmt.Sprintf("[%d,%d]v%d", k.Start, k.End, k.Version)
}

func WindowKeyFromBytes(b []byte) (WindowKey, error) {
	if len(b) != windowKeyLength {
		return WindowKey{}, errors.Wrapf(ErrMalformedRecord, "window key length [%d]", len(b))
	}
	return WindowKey{
		Start:   binary.BigEndian.Uint64(b[0:8]),
		End:     binary.BigEndian.Uint64(b[8:16]),
		Version: binary.BigEndian.Uint64(b[16:24]),
	}, nil
}

func ParseHandle(handle string) (WindowKey, error) {
	b, err := hex.DecodeString(handle)
	if err != nil {
		return WindowKey{}, errors.Wrapf(ErrMalformedRecord, "decoding handle [%s]: %v", handle, err)
	}
	return WindowKeyFromBytes(b)
}

// ResultMeta is attached to serialized rank and reward results.
type ResultMeta struct {
	StartHeight uint64
	EndHeight   uint64
	Version     uint64
}

func MetaFor(key WindowKey) *ResultMeta {
	return &ResultMeta{StartHeight: key.Start, EndHeight: key.End, Version: key.Version}
}
