package image

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"github.com/ianlancetaylor/demangle"
)

// runtimeFunctionSize is the size of an x64 RUNTIME_FUNCTION entry.
const runtimeFunctionSize = 12

// Open maps a PE32+ or ELF64 x86-64 image and indexes it.
func Open(path string) (*Image, error) {
	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if fi.Size() == 0 {
		of.Close()
		return nil, fmt.Errorf("empty file: %s", path)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, all: all, f: of}
	switch {
	case bytes.HasPrefix(all, []byte("MZ")):
		err = im.loadPE()
	case bytes.HasPrefix(all, []byte(elf.ELFMAG)):
		err = im.loadELF()
	default:
		err = fmt.Errorf("unsupported file format")
	}
	if err != nil {
		im.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return im, nil
}

// Close unmaps the memory and closes the underlying file.
func (im *Image) Close() error {
	var err1, err2 error
	if im.all != nil {
		err1 = syscall.Munmap(im.all)
		im.all = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// fileData returns all[off:off+size] clipped to the mapped file.
func (im *Image) fileData(off, size uint64) []byte {
	if off >= uint64(len(im.all)) {
		return nil
	}
	end := off + size
	if end > uint64(len(im.all)) {
		end = uint64(len(im.all))
	}
	return im.all[off:end]
}

func (im *Image) loadPE() error {
	f, err := pe.NewFile(bytes.NewReader(im.all))
	if err != nil {
		return fmt.Errorf("parse pe: %w", err)
	}
	defer f.Close()

	if f.Machine != pe.IMAGE_FILE_MACHINE_AMD64 {
		return fmt.Errorf("unsupported pe machine %#x", f.Machine)
	}
	oh, ok := f.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return fmt.Errorf("missing pe32+ optional header")
	}

	im.Format = FormatPE
	im.Base = oh.ImageBase
	im.Entry = oh.ImageBase + uint64(oh.AddressOfEntryPoint)

	for _, s := range f.Sections {
		vsize := uint64(s.VirtualSize)
		if vsize == 0 {
			vsize = uint64(s.Size)
		}
		raw := uint64(s.Size)
		if raw > vsize {
			raw = vsize
		}
		im.Sections = append(im.Sections, Section{
			Name: s.Name,
			VA:   oh.ImageBase + uint64(s.VirtualAddress),
			Off:  uint64(s.Offset),
			Size: vsize,
			Exec: s.Characteristics&pe.IMAGE_SCN_MEM_EXECUTE != 0,
			Data: im.fileData(uint64(s.Offset), raw),
		})
	}
	im.init()

	if int(pe.IMAGE_DIRECTORY_ENTRY_EXCEPTION) < len(oh.DataDirectory) {
		dir := oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXCEPTION]
		im.loadRuntimeFunctions(oh.ImageBase, dir.VirtualAddress, dir.Size)
	}
	if _, ok := im.FuncAt(im.Entry); !ok && im.AddFunc(im.Entry) {
		_ = im.SetName(im.Entry, "_ModuleEntryPoint")
	}
	return nil
}

// loadRuntimeFunctions seeds the function table from the x64 exception
// directory, which lists the bounds of every non-leaf function.
func (im *Image) loadRuntimeFunctions(base uint64, rva, size uint32) {
	if rva == 0 || size < runtimeFunctionSize {
		return
	}
	data, ok := im.SliceVA(base+uint64(rva), uint64(size))
	if !ok {
		return
	}
	for off := 0; off+runtimeFunctionSize <= len(data); off += runtimeFunctionSize {
		begin := binary.LittleEndian.Uint32(data[off:])
		end := binary.LittleEndian.Uint32(data[off+4:])
		if begin == 0 || end <= begin {
			continue
		}
		im.DefineFunc(base+uint64(begin), base+uint64(end), "")
	}
}

func (im *Image) loadELF() error {
	f, err := elf.NewFile(bytes.NewReader(im.all))
	if err != nil {
		return fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()

	if f.Machine != elf.EM_X86_64 {
		return fmt.Errorf("unsupported elf machine %s", f.Machine)
	}

	im.Format = FormatELF
	im.Entry = f.Entry
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Addr == 0 {
			continue
		}
		sec := Section{
			Name: s.Name,
			VA:   s.Addr,
			Off:  s.Offset,
			Size: s.Size,
			Exec: s.Flags&elf.SHF_EXECINSTR != 0,
		}
		if s.Type != elf.SHT_NOBITS {
			sec.Data = im.fileData(s.Offset, s.Size)
		}
		im.Sections = append(im.Sections, sec)
	}
	im.init()
	if len(im.Sections) > 0 {
		im.Base = im.Sections[0].VA
	}

	// Static symbols first, dynamic symbols as a fallback for stripped images.
	syms, _ := f.Symbols()
	dynsyms, _ := f.DynamicSymbols()
	for _, sym := range append(syms, dynsyms...) {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Value == 0 || sym.Size == 0 {
			continue
		}
		im.DefineFunc(sym.Value, sym.Value+sym.Size, demangle.Filter(sym.Name, demangle.NoClones))
	}
	if _, ok := im.FuncAt(im.Entry); !ok {
		im.AddFunc(im.Entry)
	}
	return nil
}
