// Command xcoffdump is a small read-side companion to cmd/xcoffld: given
// one XCOFF file it lists the symbols xcoffobj.ReadInput/Split recover from
// it, and given two (-verify) it reports whatever linker.Diff finds
// different between their symbol tables -- the regression check a build
// system runs after relinking the same inputs to confirm nothing drifted.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aixtools/xcoffld/pkg/linker"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/pkg/xcoffobj"
	"github.com/aixtools/xcoffld/types"
)

func main() {
	verify := flag.String("verify", "", "compare this file's symbol table against the positional argument's")
	flag.Parse()

	if *verify != "" {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: xcoffdump -verify <old-file> <new-file>")
			os.Exit(2)
		}
		runVerify(*verify, flag.Arg(0))
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: xcoffdump <file>")
		os.Exit(2)
	}
	syms := readSymbols(flag.Arg(0))
	for _, s := range syms.All() {
		fmt.Printf("%-40s %-10s value=%#x smclass=%d\n", s.Name, s.State, s.Value, s.SMClass)
	}
}

func runVerify(oldPath, newPath string) {
	oldSyms := readSymbols(oldPath)
	newSyms := readSymbols(newPath)
	d := linker.Diff(oldSyms, newSyms)
	if d == "" {
		fmt.Println("xcoffdump: no symbol differences")
		return
	}
	fmt.Print(d)
	os.Exit(1)
}

func readSymbols(path string) *symtab.Table {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcoffdump: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	in, err := xcoffobj.ReadInput(path, fileReader{f: f}, types.BigEndian)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcoffdump: %v\n", err)
		os.Exit(1)
	}
	syms := symtab.NewTable(256)
	if err := xcoffobj.Split(in, syms, in.AuxCSect); err != nil {
		fmt.Fprintf(os.Stderr, "xcoffdump: %s: %v\n", path, err)
		os.Exit(1)
	}
	return syms
}

// fileReader adapts *os.File to xcoffobj.BlobReader, same as cmd/xcoffld's.
type fileReader struct{ f *os.File }

func (r fileReader) ReadAt(off int64, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := r.f.ReadAt(b, off); err != nil {
		return nil, err
	}
	return b, nil
}

func (r fileReader) Size() int64 {
	fi, err := r.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}
