package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Hive is a registry root.
type Hive int

// Registry roots gametune writes to.
const (
	LocalMachine Hive = iota
	CurrentUser
)

// String returns the short root name.
func (h Hive) String() string {
	switch h {
	case LocalMachine:
		return "HKLM"
	case CurrentUser:
		return "HKCU"
	default:
		return fmt.Sprintf("Hive(%d)", int(h))
	}
}

// RegistryKey addresses one named value.
type RegistryKey struct {
	Hive Hive
	Path string
	Name string
}

// String returns the full value path, e.g. HKLM\SYSTEM\...\HwSchMode.
func (k RegistryKey) String() string {
	return k.Hive.String() + `\` + k.Path + `\` + k.Name
}

// ParseRegistryKey parses the output of RegistryKey.String.
func ParseRegistryKey(s string) (RegistryKey, error) {
	root, rest, ok := strings.Cut(s, `\`)
	i := strings.LastIndex(rest, `\`)
	if !ok || i <= 0 || i == len(rest)-1 {
		return RegistryKey{}, fmt.Errorf("%w: malformed registry key %q", ErrInvalidArgument, s)
	}

	var hive Hive
	switch strings.ToUpper(root) {
	case "HKLM":
		hive = LocalMachine
	case "HKCU":
		hive = CurrentUser
	default:
		return RegistryKey{}, fmt.Errorf("%w: unknown registry root %q", ErrInvalidArgument, root)
	}
	return RegistryKey{Hive: hive, Path: rest[:i], Name: rest[i+1:]}, nil
}

// ValueKind is the type of a registry value.
type ValueKind int

// Supported value kinds.
const (
	KindDWord ValueKind = iota
	KindString
)

// RegistryValue is a typed registry value.
type RegistryValue struct {
	Kind  ValueKind
	DWord uint32
	Text  string
}

// DWord returns a REG_DWORD value.
func DWord(v uint32) RegistryValue {
	return RegistryValue{Kind: KindDWord, DWord: v}
}

// SZ returns a REG_SZ value.
func SZ(s string) RegistryValue {
	return RegistryValue{Kind: KindString, Text: s}
}

// Encode renders the value in the form stored in backup records:
// "dword:<decimal>" or "sz:<text>".
func (v RegistryValue) Encode() string {
	if v.Kind == KindString {
		return "sz:" + v.Text
	}
	return "dword:" + strconv.FormatUint(uint64(v.DWord), 10)
}

// Equal reports whether two values have the same kind and content.
func (v RegistryValue) Equal(o RegistryValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindString {
		return v.Text == o.Text
	}
	return v.DWord == o.DWord
}

// DecodeValue parses the output of Encode.
func DecodeValue(s string) (RegistryValue, error) {
	kind, data, ok := strings.Cut(s, ":")
	if !ok {
		return RegistryValue{}, fmt.Errorf("%w: malformed registry value %q", ErrInvalidArgument, s)
	}

	switch kind {
	case "dword":
		n, err := strconv.ParseUint(data, 10, 32)
		if err != nil {
			return RegistryValue{}, fmt.Errorf("%w: dword %q: %v", ErrInvalidArgument, data, err)
		}
		return DWord(uint32(n)), nil
	case "sz":
		return SZ(data), nil
	default:
		return RegistryValue{}, fmt.Errorf("%w: unknown registry value kind %q", ErrInvalidArgument, kind)
	}
}
