// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command atomz compacts resource documents
// into artifacts and restores them.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/SnellerInc/atompack/compact"
)

var (
	dashv       bool
	dashh       bool
	dashsession bool
	dashz       string
	dasho       string
	dashconfig  string

	conf *config
	logf func(f string, args ...interface{})
	// flush, if set, flushes buffered log
	// output before the process exits
	flush func()

	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.BoolVar(&dashh, "h", false, "show usage help")
	flag.BoolVar(&dashsession, "session", false, "share one dictionary across the documents given to stats")
	flag.StringVar(&dashz, "z", "", "artifact codec: json, none, s2, zstd, zstd-better (default from config, else json)")
	flag.StringVar(&dasho, "o", "-", "output file (or - for stdout)")
	flag.StringVar(&dashconfig, "config", "", "YAML config file (default: $ATOMZ_CONFIG)")
}

func exitf(f string, args ...interface{}) {
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(stderr, f, args...)
	if flush != nil {
		flush()
	}
	exit(1)
}

// setup loads the config and applies
// the flags that were set explicitly.
func setup() {
	var err error
	conf, err = loadConfig(dashconfig)
	if err != nil {
		exitf("%s", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			conf.Verbose = dashv
		case "session":
			conf.Session = dashsession
		case "z":
			conf.Codec = dashz
		}
	})
	if err := checkCodec(conf.Codec); err != nil {
		exitf("-z: %s", err)
	}
}

func output() io.WriteCloser {
	if dasho == "-" {
		return os.Stdout
	}
	f, err := os.Create(dasho)
	if err != nil {
		exitf("creating output: %s", err)
	}
	return f
}

func compactor(dict *compact.Dictionary) *compact.Compactor {
	c := &compact.Compactor{Dict: dict}
	if conf.Verbose {
		c.Logf = logf
	}
	return c
}

// entry point for 'atomz compact ...'
func compactDoc(name string) {
	doc, err := readDoc(name)
	if err != nil {
		exitf("%s", err)
	}
	a, err := compactor(nil).Compact(doc)
	if err != nil {
		exitf("%s: %s", name, err)
	}
	out := output()
	if err := writeArtifact(out, a, conf.Codec); err != nil {
		exitf("writing artifact: %s", err)
	}
	if err := out.Close(); err != nil {
		exitf("closing output: %s", err)
	}
}

// entry point for 'atomz decompress ...'
func decompress(name string) {
	a, err := readArtifact(name)
	if err != nil {
		exitf("%s", err)
	}
	doc, err := compact.Decompress(a)
	if err != nil {
		exitf("%s: %s", name, err)
	}
	if conf.Verbose {
		logf("restored %d resources from %s", len(doc.Resources), name)
	}
	out := output()
	if _, err := out.Write(append(doc.AppendJSON(nil), '\n')); err != nil {
		exitf("writing document: %s", err)
	}
	if err := out.Close(); err != nil {
		exitf("closing output: %s", err)
	}
}

func printStats(w io.Writer, name string, st *compact.Stats) {
	fmt.Fprintf(w, "%s: %d resources, %d urls, %d shapes, %d pooled strings (%d deduplicated), %d abbreviated\n",
		name, st.Resources, st.URLs, st.Shapes, st.PooledStrings, st.StringsDeduplicated, st.PropertiesAbbreviated)
	fmt.Fprintf(w, "\t%d -> %d bytes (ratio %.3f)\n", st.OriginalSize, st.CompressedSize, st.Ratio)
}

// entry point for 'atomz stats ...'
func stats(args []string) {
	var dict *compact.Dictionary
	if conf.Session {
		dict = compact.NewDictionary()
	}
	c := compactor(dict)
	for _, name := range args {
		doc, err := readDoc(name)
		if err != nil {
			exitf("%s", err)
		}
		a, err := c.Compact(doc)
		if err != nil {
			exitf("%s: %s", name, err)
		}
		printStats(os.Stdout, name, &a.Stats)
	}
	if dict != nil {
		fmt.Printf("session: %d urls, %d shapes, %d strings\n", dict.URLs(), dict.Shapes(), dict.Strings())
	}
}

// entry point for 'atomz inspect ...'
func inspect(name string) {
	a, err := readArtifact(name)
	if err != nil {
		exitf("%s", err)
	}
	id, err := a.Fingerprint()
	if err != nil {
		exitf("%s: %s", name, err)
	}
	pooled := 0
	for _, p := range a.Pools {
		pooled += len(p)
	}
	fmt.Printf("%s: format %d, abbreviations %d, fingerprint %s\n", name, a.Version, a.AbbrevVersion, id)
	fmt.Printf("\t%d urls, %d abbreviated, %d pools (%d strings), %d shapes, %d records\n",
		len(a.URLs), len(a.Abbrev), len(a.Pools), pooled, len(a.Shapes), len(a.Records))
	printStats(os.Stdout, name, &a.Stats)
	if _, err := compact.Decompress(a); err != nil {
		exitf("%s: %s", name, err)
	}
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 || dashh {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "    %s [-z codec] [-o output] compact <doc.json|doc.yaml|->\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "        compact a document into an artifact\n")
		fmt.Fprintf(os.Stderr, "    %s [-o output] decompress <artifact>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "        restore the document held in an artifact\n")
		fmt.Fprintf(os.Stderr, "    %s [-session] stats <doc>...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "        print compaction statistics for documents\n")
		fmt.Fprintf(os.Stderr, "    %s inspect <artifact>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "        describe and validate an artifact\n")
		fmt.Fprintf(os.Stderr, "flag usage:\n")
		flag.Usage()
		os.Exit(1)
	}
	setup()
	var err error
	logf, flush, err = newLogger(conf.Verbose)
	if err != nil {
		exitf("%s", err)
	}
	defer flush()

	switch args[0] {
	case "compact":
		if len(args) != 2 {
			exitf("usage: compact <doc>")
		}
		compactDoc(args[1])
	case "decompress":
		if len(args) != 2 {
			exitf("usage: decompress <artifact>")
		}
		decompress(args[1])
	case "stats":
		if len(args) < 2 {
			exitf("usage: stats <doc>...")
		}
		stats(args[1:])
	case "inspect":
		if len(args) != 2 {
			exitf("usage: inspect <artifact>")
		}
		inspect(args[1])
	default:
		exitf("commands: compact, decompress, stats, inspect")
	}
}
