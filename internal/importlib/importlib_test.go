package importlib

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildShortImportMember constructs a 20-byte short-import header
// (sig 0x0000/0xFFFF, 4 reserved/machine-ish bytes, u32 time-date, u32
// size-of-data, u16 hint-or-ordinal, u16 type/name-type) followed by
// "symbol\0dll\0", per spec.md §4.9 and §8 scenario 1.
func buildShortImportMember(hint uint16, typeNameType uint16, symbol, dll string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0x0000))
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFF))
	binary.Write(&buf, binary.LittleEndian, uint16(0x8664)) // machine: AMD64
	binary.Write(&buf, binary.LittleEndian, uint16(0))      // reserved/version
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // time-date
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // size-of-data
	binary.Write(&buf, binary.LittleEndian, hint)
	binary.Write(&buf, binary.LittleEndian, typeNameType)
	buf.WriteString(symbol)
	buf.WriteByte(0)
	buf.WriteString(dll)
	buf.WriteByte(0)
	return buf.Bytes()
}

func buildArchive(members map[string][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(arMagic)
	for name, data := range members {
		var hdr [memberHeaderSize]byte
		copy(hdr[0:16], []byte(name+"                "))
		sizeStr := []byte("0000000000")
		n := len(data)
		for i := len(sizeStr) - 1; i >= 0 && n > 0; i-- {
			sizeStr[i] = byte('0' + n%10)
			n /= 10
		}
		copy(hdr[48:58], sizeStr)
		hdr[58] = '`'
		hdr[59] = '\n'
		buf.Write(hdr[:])
		buf.Write(data)
		if len(data)%2 != 0 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// spec.md §8 scenario 1 (short-import parse), with type/name-type
// constructed so both the ordinal and the code/data/const kind agree:
// type bits (low 2) = code(0), name-type bits (next 2) = ordinal(0).
func TestShortImportParseScenario(t *testing.T) {
	member := buildShortImportMember(1, 0x0000, "foo", "bar.dll")
	archive := buildArchive(map[string][]byte{"foo.o": member})

	lib, err := Parse("test.lib", archive)
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(lib.Entries))
	}
	e := lib.Entries[0]
	if e.Symbol != "foo" || e.DLL != "bar.dll" || e.Kind != KindCode || !e.ByOrdinal || e.Ordinal != 1 {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestFindIsSymmetricOnUnderscoreVariant(t *testing.T) {
	lib := &Library{}
	lib.AddEntry("_printf", "msvcrt.dll", KindCode)

	e1, err1 := lib.Find("printf")
	e2, err2 := lib.Find("_printf")
	if err1 != nil || err2 != nil {
		t.Fatalf("expected both lookups to succeed, got %v / %v", err1, err2)
	}
	if e1 != e2 {
		t.Fatalf("expected find(name) and find(_name) to return the same entry")
	}
}

func TestFindNotFound(t *testing.T) {
	lib := &Library{}
	if _, err := lib.Find("missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestParseRejectsMissingMagic(t *testing.T) {
	if _, err := Parse("bad.lib", []byte("not an archive")); err == nil {
		t.Fatal("expected format error")
	}
}

func TestParseTruncatedTrailingMemberDegradesGracefully(t *testing.T) {
	full := buildArchive(map[string][]byte{"a.o": buildShortImportMember(1, 0, "a", "a.dll")})
	truncated := full[:len(full)-5] // chop into the trailing member's data

	lib, err := Parse("partial.lib", truncated)
	if err != nil {
		t.Fatalf("expected a degraded but valid library, got error: %v", err)
	}
	if lib == nil {
		t.Fatal("expected non-nil library")
	}
}
