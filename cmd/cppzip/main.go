package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"cppzip/zip"
)

var opts struct {
	Args struct {
		Archive flags.Filename `positional-arg-name:"archive" description:"path to an existing archive; omitted to create a sample archive"`
	} `positional-args:"yes"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var err error
	if opts.Args.Archive == "" {
		err = create("testzip.zip")
	} else {
		err = list(string(opts.Args.Archive))
	}
	if err != nil {
		log.Fatalf("cppzip: %v", err)
	}
}

// create writes a sample archive with a single entry, mirroring the
// original cppzip command-line demo's no-argument behavior.
func create(path string) error {
	a := zip.New()

	modTime := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := a.AddData("foobar/test.txt", []byte("TestData"), modTime); err != nil {
		return fmt.Errorf("add entry: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := a.WriteArchive(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// list opens an existing archive read-only and prints one entry name per line.
func list(path string) error {
	a, err := zip.Open(path, zip.ReadOnly)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer a.Close()

	for _, e := range a.GetEntries() {
		fmt.Println(e.Name())
	}
	return nil
}
