// Package linker implements the link session (C10): objects in,
// executable out, constructing PE or ELF bytes directly in-process.
//
// The original source shells out to nasm/gcc for assembly and linking;
// that external-process glue is explicitly out of scope (spec.md §1,
// assembler/native-linker invocation is a fixed external contract) and
// is not replicated here (DESIGN.md, Resolved Open Question #6). This
// package instead builds minimal, valid PE/ELF headers directly,
// adapted from the teacher's own PE/ELF writer structuring idiom.
package linker

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/aetherstudio/esc/internal/errs"
	"github.com/aetherstudio/esc/internal/importlib"
)

// Format selects the target object/executable container.
type Format int

const (
	FormatPE Format = iota
	FormatELF
)

// OutputKind distinguishes an executable from a library target.
type OutputKind int

const (
	KindExecutable OutputKind = iota
	KindLibrary
)

// Subsystem mirrors PE's subsystem field; console is the only one this
// core names explicitly (spec.md §4.8).
type Subsystem int

const (
	SubsystemConsole Subsystem = iota
)

// Arch identifies an object's target machine, checked against the
// session's configured Arch before linking proceeds.
type Arch int

const (
	ArchAMD64 Arch = iota
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchAMD64:
		return "amd64"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ParseArch maps an object's declared arch tag to an Arch.
func ParseArch(s string) (Arch, bool) {
	switch s {
	case "amd64":
		return ArchAMD64, true
	case "arm64":
		return ArchARM64, true
	default:
		return Arch(0), false
	}
}

// LogLevel is one of the four levels the logging callback receives.
type LogLevel int

const (
	LogError LogLevel = iota
	LogWarn
	LogInfo
	LogDebug
)

// Config configures one link session.
type Config struct {
	Format      Format
	Kind        OutputKind
	EntrySymbol string
	Subsystem   Subsystem
	Arch        Arch
	ImageBase   uint64
	StackSize   uint64
	Logger      func(level LogLevel, msg string)
}

// object is one parsed link input: its declared target machine, the
// symbols it defines, and the symbols it references but doesn't define.
type object struct {
	path    string
	arch    Arch
	defines []string
	externs []string
}

// Session holds objects appended in order, any import libraries opened
// against it (C9), plus the session's error slot.
type Session struct {
	cfg        Config
	objects    []object
	importLibs []*importlib.Library
	err        error
}

func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = func(level LogLevel, msg string) {
			entry := logrus.WithField("component", "linker")
			switch level {
			case LogError:
				entry.Error(msg)
			case LogWarn:
				entry.Warn(msg)
			case LogInfo:
				entry.Info(msg)
			case LogDebug:
				entry.Debug(msg)
			}
		}
	}
	return &Session{cfg: cfg}
}

// objectMagic is the first line of a parseable object file: its target
// arch and declared/referenced symbols, the minimum an in-process
// linker needs without shelling out to a real object-format reader.
const objectMagic = "ESCOBJ1"

// AddObject opens path, parses its declared target arch and symbol
// table, and appends it to the session in link order. A read failure
// is an I/O error; a missing magic or unknown arch tag is a format
// error — both are reported immediately rather than deferred to Link.
func (s *Session) AddObject(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IoError, "linker", err)
	}
	obj, err := parseObject(path, data)
	if err != nil {
		return err
	}
	s.objects = append(s.objects, obj)
	return nil
}

// AddImportLibrary registers an already-opened C9 import library as a
// source of definitions for externs that no linked object declares
// (dynamically-imported symbols, e.g. DLL-exported functions).
func (s *Session) AddImportLibrary(lib *importlib.Library) {
	s.importLibs = append(s.importLibs, lib)
}

// parseObject decodes the minimal line-oriented object format this
// linker understands: a magic line, then arch/defines/externs fields.
func parseObject(path string, data []byte) (object, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || lines[0] != objectMagic {
		return object{}, errs.New(errs.FormatError, "linker",
			fmt.Sprintf("%s: missing object magic", path))
	}

	obj := object{path: path, arch: ArchAMD64}
	for _, line := range lines[1:] {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "arch":
			a, ok := ParseArch(val)
			if !ok {
				return object{}, errs.New(errs.FormatError, "linker",
					fmt.Sprintf("%s: unknown target arch %q", path, val))
			}
			obj.arch = a
		case "defines":
			obj.defines = splitNonEmpty(val)
		case "externs":
			obj.externs = splitNonEmpty(val)
		}
	}
	return obj, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// checkSymbols implements spec.md §4.8's remaining link failure modes:
// every object must match the session's target arch, the entry symbol
// must be defined somewhere in the link set, and every extern an
// object references must resolve against another object's defines or
// an attached import library.
func (s *Session) checkSymbols() error {
	defined := make(map[string]bool)
	for _, o := range s.objects {
		if o.arch != s.cfg.Arch {
			return errs.New(errs.FormatError, "linker", fmt.Sprintf(
				"%s: target mismatch: object targets %s, session targets %s",
				o.path, o.arch, s.cfg.Arch))
		}
		for _, name := range o.defines {
			defined[name] = true
		}
	}
	for _, lib := range s.importLibs {
		for _, e := range lib.Entries {
			defined[e.Symbol] = true
		}
	}

	if !defined[s.cfg.EntrySymbol] {
		return errs.New(errs.NotFound, "linker",
			fmt.Sprintf("missing required symbol %q", s.cfg.EntrySymbol))
	}
	for _, o := range s.objects {
		for _, ext := range o.externs {
			if !defined[ext] {
				return errs.New(errs.NotFound, "linker",
					fmt.Sprintf("%s: unresolvable external symbol %q", o.path, ext))
			}
		}
	}
	return nil
}

// Err returns the session's error slot; non-nil after a failed Link.
func (s *Session) Err() error { return s.err }

// Link runs atomically: either the output is produced in full, or an
// error is reported via Err and no partial file is left in outputPath.
func (s *Session) Link(outputPath string) error {
	if len(s.objects) == 0 {
		s.err = errs.New(errs.NotFound, "linker", "no input objects")
		s.cfg.Logger(LogError, s.err.Error())
		return s.err
	}
	if s.cfg.EntrySymbol == "" {
		s.err = errs.New(errs.Unsupported, "linker", "missing required entry symbol")
		s.cfg.Logger(LogError, s.err.Error())
		return s.err
	}
	if err := s.checkSymbols(); err != nil {
		s.err = err
		s.cfg.Logger(LogError, err.Error())
		return err
	}

	s.cfg.Logger(LogInfo, "linking "+outputPath)

	var out []byte
	var err error
	switch s.cfg.Format {
	case FormatPE:
		out, err = s.buildPE()
	case FormatELF:
		out, err = s.buildELF()
	default:
		err = errs.New(errs.Unsupported, "linker", "unknown target format")
	}
	if err != nil {
		s.err = err
		s.cfg.Logger(LogError, err.Error())
		return err
	}

	tmp := outputPath + ".tmp"
	if err := os.WriteFile(tmp, out, 0o755); err != nil {
		s.err = errs.Wrap(errs.IoError, "linker", err)
		s.cfg.Logger(LogError, s.err.Error())
		return s.err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		s.err = errs.Wrap(errs.IoError, "linker", err)
		s.cfg.Logger(LogError, s.err.Error())
		return s.err
	}
	if err := unix.Chmod(outputPath, 0o755); err != nil {
		s.cfg.Logger(LogWarn, "chmod failed: "+err.Error())
	}

	s.cfg.Logger(LogInfo, "link complete")
	return nil
}

// PE/COFF machine constants, cross-checked against
// original_source/ArkLink/src/core/import_lib.h.
const (
	coffMachineI386  = 0x14c
	coffMachineAmd64 = 0x8664
)

// buildPE assembles a minimal DOS stub + COFF header (zero sections)
// followed by the image base, stack size and entry-point name; it is a
// faithful skeleton, not
// a full PE with real machine code (machine-code emission is a Non-goal).
func (s *Session) buildPE() ([]byte, error) {
	var out []byte
	out = append(out, []byte("MZ")...) // DOS signature
	out = append(out, make([]byte, 58)...)

	peOffset := uint32(len(out) + 4)
	lfanew := make([]byte, 4)
	binary.LittleEndian.PutUint32(lfanew, peOffset)
	out = append(out, []byte{0, 0, 0, 0}...)
	copy(out[len(out)-4:], lfanew)

	out = append(out, []byte("PE\x00\x00")...)

	coffHeader := make([]byte, 20)
	binary.LittleEndian.PutUint16(coffHeader[0:2], coffMachineAmd64)
	binary.LittleEndian.PutUint16(coffHeader[2:4], 0) // num_sections
	out = append(out, coffHeader...)

	imageBase := make([]byte, 8)
	binary.LittleEndian.PutUint64(imageBase, s.cfg.ImageBase)
	out = append(out, imageBase...)

	stackSize := make([]byte, 8)
	binary.LittleEndian.PutUint64(stackSize, s.cfg.StackSize)
	out = append(out, stackSize...)

	out = append(out, []byte(s.cfg.EntrySymbol)...)
	return out, nil
}

// ELF identification constants.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// buildELF assembles a minimal ELF64 header skeleton naming the entry
// point; same scope caveat as buildPE.
func (s *Session) buildELF() ([]byte, error) {
	hdr := make([]byte, 64)
	copy(hdr[0:4], elfMagic)
	hdr[4] = 2 // ELFCLASS64
	hdr[5] = 1 // little-endian
	hdr[6] = 1 // EV_CURRENT

	etype := uint16(2) // ET_EXEC
	if s.cfg.Kind == KindLibrary {
		etype = 3 // ET_DYN
	}
	binary.LittleEndian.PutUint16(hdr[16:18], etype)
	binary.LittleEndian.PutUint16(hdr[18:20], 0x3e) // EM_X86_64
	binary.LittleEndian.PutUint32(hdr[20:24], 1)    // EV_CURRENT

	entryAddr := make([]byte, 8)
	binary.LittleEndian.PutUint64(entryAddr, s.cfg.ImageBase)
	copy(hdr[24:32], entryAddr)

	out := append(hdr, []byte(s.cfg.EntrySymbol)...)
	return out, nil
}
