package symbolizer

import (
	"debug/elf"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestElfEntries_FiltersLikeNmDefinedOnly(t *testing.T) {
	info := func(bind elf.SymBind, typ elf.SymType) byte { return elf.ST_INFO(bind, typ) }
	syms := []elf.Symbol{
		{Name: "main", Value: 0x401000, Info: info(elf.STB_GLOBAL, elf.STT_FUNC), Section: 1},
		{Name: "_start", Value: 0x400f00, Info: info(elf.STB_GLOBAL, elf.STT_NOTYPE), Section: 1},
		{Name: "counter", Value: 0x602000, Info: info(elf.STB_GLOBAL, elf.STT_OBJECT), Section: 3},
		{Name: "printf", Value: 0, Info: info(elf.STB_GLOBAL, elf.STT_FUNC), Section: elf.SHN_UNDEF},
		{Name: "puts", Value: 0x401500, Info: info(elf.STB_GLOBAL, elf.STT_FUNC), Section: elf.SHN_UNDEF},
		{Name: ".text", Value: 0x401000, Info: info(elf.STB_LOCAL, elf.STT_SECTION), Section: 1},
		{Name: "main.c", Value: 0, Info: info(elf.STB_LOCAL, elf.STT_FILE), Section: elf.SHN_ABS},
		{Name: "", Value: 0x401200, Info: info(elf.STB_LOCAL, elf.STT_FUNC), Section: 1},
	}

	got := elfEntries(syms)
	want := []SymbolEntry{
		{Addr: 0x401000, Name: "main"},
		{Addr: 0x400f00, Name: "_start"},
		{Addr: 0x602000, Name: "counter"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: want %+v got %+v", i, want[i], got[i])
		}
	}
}

const fixtureSource = `package main

//go:noinline
func fixtureTarget(n int) int { return n * 3 }

func main() { println(fixtureTarget(14)) }
`

// buildFixture compiles a small static program with its symbol table intact.
func buildFixture(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a Go program")
	}
	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not available")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "fixture.go")
	if err := os.WriteFile(src, []byte(fixtureSource), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "fixture.elf")
	cmd := exec.Command(goTool, "build", "-o", bin, src)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOOS=linux", "CGO_ENABLED=0", "GOFLAGS=")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fixture: %v\n%s", err, out)
	}
	return bin
}

func TestElfSymbols_ReadsBuiltExecutable(t *testing.T) {
	bin := buildFixture(t)

	entries, err := ElfSymbols(bin)
	if err != nil {
		t.Fatalf("ElfSymbols: %v", err)
	}
	addrs := map[string]uint64{}
	for _, e := range entries {
		addrs[e.Name] = e.Addr
	}
	resolver := NewResolver(NewSymbolTable(entries))
	for _, name := range []string{"main.main", "main.fixtureTarget"} {
		addr, ok := addrs[name]
		if !ok {
			t.Fatalf("%s not found among %d symbols", name, len(entries))
		}
		sym, err := resolver.Resolve(addr + 1)
		if err != nil {
			t.Fatalf("resolve inside %s: %v", name, err)
		}
		if sym.Name != name || sym.Addr != addr || sym.Offset != 1 {
			t.Fatalf("resolve %#x: want %s+1 at %#x, got %+v", addr+1, name, addr, sym)
		}
	}
}

func TestLoadSymbolTable_ElfSource(t *testing.T) {
	bin := buildFixture(t)

	table, err := LoadSymbolTable(SourceElf, bin, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadSymbolTable: %v", err)
	}
	if table.Len() == 0 || table.MaxAddr() == 0 {
		t.Fatalf("expected a populated table, got %d symbols up to %#x", table.Len(), table.MaxAddr())
	}
}

func TestElfSymbols_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := ElfSymbols(filepath.Join(t.TempDir(), "nope.elf"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected not-exist error, got %v", err)
		}
	})

	t.Run("not_an_elf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "text.elf")
		if err := os.WriteFile(path, []byte("definitely not an executable"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ElfSymbols(path); err == nil {
			t.Fatalf("expected error for non-ELF file")
		}
	})
}
