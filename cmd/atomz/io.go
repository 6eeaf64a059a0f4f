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

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/SnellerInc/atompack/atom"
	"github.com/SnellerInc/atompack/compact"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// just pick an upper limit to prevent DoS
const maxInput = 256 * 1024 * 1024

func readInput(name string) ([]byte, error) {
	var r io.Reader
	if name == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	buf, err := io.ReadAll(io.LimitReader(r, maxInput+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxInput {
		return nil, fmt.Errorf("%s: input larger than %d bytes", name, maxInput)
	}
	return buf, nil
}

// readDoc reads a document as JSON,
// or as YAML for .yaml and .yml files.
func readDoc(name string) (*atom.Document, error) {
	buf, err := readInput(name)
	if err != nil {
		return nil, err
	}
	var doc *atom.Document
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		doc, err = atom.ParseYAML(buf)
	default:
		doc, err = atom.ParseJSON(bytes.NewReader(buf))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// readArtifact reads either artifact JSON
// or a binary container.
func readArtifact(name string) (*compact.Artifact, error) {
	buf, err := readInput(name)
	if err != nil {
		return nil, err
	}
	if compact.IsContainer(buf) {
		buf, err = compact.Unpack(buf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	a, err := compact.ParseArtifact(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

// writeArtifact writes a as JSON or,
// for any other codec, as a container.
func writeArtifact(w io.Writer, a *compact.Artifact, codec string) error {
	if codec != jsonCodec {
		return compact.WriteArtifact(w, a, codec)
	}
	buf, err := a.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(append(buf, '\n'))
	return err
}

// newLogger returns a logf function
// backed by zap and a function that
// flushes the logger.
func newLogger(verbose bool) (func(string, ...interface{}), func(), error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	sugar := logger.Sugar()
	return sugar.Infof, func() { _ = logger.Sync() }, nil
}
