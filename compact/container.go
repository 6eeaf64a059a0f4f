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

package compact

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/SnellerInc/atompack/compr"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ContainerVersion is the version of the
// binary container written by WriteArtifact.
const ContainerVersion = 1

// just pick an upper limit to prevent DoS
const maxContainerSize = 256 * 1024 * 1024

// maxExpansion bounds the ratio of the raw
// artifact size to its compressed payload;
// a header claiming more is rejected before
// the output buffer is allocated
const maxExpansion = 4096

var containerMagic = []byte("ATMZ")

// IsContainer returns whether buf begins
// with the magic of a binary artifact container.
func IsContainer(buf []byte) bool {
	return bytes.HasPrefix(buf, containerMagic)
}

// WriteArtifact writes a to w as a binary
// container: the artifact JSON compressed
// with the named codec (see compr.Names)
// and protected by a blake2b-256 checksum.
func WriteArtifact(w io.Writer, a *Artifact, codec string) error {
	comp := compr.Compression(codec)
	if comp == nil {
		return fmt.Errorf("compact.WriteArtifact: unknown codec %q", codec)
	}
	raw, err := a.Encode()
	if err != nil {
		return fmt.Errorf("compact.WriteArtifact: %w", err)
	}
	sum := blake2b.Sum256(raw)
	buf := append([]byte(nil), containerMagic...)
	buf = binary.AppendUvarint(buf, ContainerVersion)
	buf = binary.AppendUvarint(buf, uint64(len(codec)))
	buf = append(buf, codec...)
	buf = binary.AppendUvarint(buf, uint64(len(raw)))
	buf = append(buf, sum[:]...)
	buf = comp.Compress(raw, buf)
	_, err = w.Write(buf)
	return err
}

// ReadArtifact reads a container written
// by WriteArtifact.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxContainerSize+1))
	if err != nil {
		return nil, err
	}
	if len(buf) > maxContainerSize {
		return nil, fmt.Errorf("compact.ReadArtifact: container larger than %d bytes", maxContainerSize)
	}
	raw, err := Unpack(buf)
	if err != nil {
		return nil, err
	}
	return ParseArtifact(raw)
}

func uvarint(buf []byte, what string) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, fmt.Errorf("compact.Unpack: %w: bad %s", ErrCorruptTable, what)
	}
	return v, buf[n:], nil
}

// Unpack returns the artifact JSON held in
// a container after verifying its checksum.
func Unpack(buf []byte) ([]byte, error) {
	if !IsContainer(buf) {
		return nil, fmt.Errorf("compact.Unpack: %w: missing container magic", ErrCorruptTable)
	}
	buf = buf[len(containerMagic):]
	version, buf, err := uvarint(buf, "version")
	if err != nil {
		return nil, err
	}
	if version > ContainerVersion {
		return nil, fmt.Errorf("compact.Unpack: %w: container version %d, supported %d",
			ErrVersionMismatch, version, ContainerVersion)
	}
	n, buf, err := uvarint(buf, "codec length")
	if err != nil {
		return nil, err
	}
	if n > uint64(len(buf)) {
		return nil, fmt.Errorf("compact.Unpack: %w: truncated codec name", ErrCorruptTable)
	}
	codec := string(buf[:n])
	buf = buf[n:]
	dec := compr.Decompression(codec)
	if dec == nil {
		return nil, fmt.Errorf("compact.Unpack: %w: unknown codec %q", ErrCorruptTable, codec)
	}
	size, buf, err := uvarint(buf, "length")
	if err != nil {
		return nil, err
	}
	if size > maxContainerSize {
		return nil, fmt.Errorf("compact.Unpack: %w: artifact of %d bytes beyond limit %d",
			ErrCorruptTable, size, maxContainerSize)
	}
	if len(buf) < blake2b.Size256 {
		return nil, fmt.Errorf("compact.Unpack: %w: truncated checksum", ErrCorruptTable)
	}
	want := buf[:blake2b.Size256]
	payload := buf[blake2b.Size256:]
	if size > uint64(len(payload))*maxExpansion {
		return nil, fmt.Errorf("compact.Unpack: %w: %d bytes claimed for a %d byte payload",
			ErrCorruptTable, size, len(payload))
	}
	raw := make([]byte, size)
	if err := dec.Decompress(payload, raw); err != nil {
		return nil, fmt.Errorf("compact.Unpack: %w: %v", ErrCorruptTable, err)
	}
	got := blake2b.Sum256(raw)
	if subtle.ConstantTimeCompare(got[:], want) != 1 {
		return nil, fmt.Errorf("compact.Unpack: %w: checksum mismatch", ErrCorruptTable)
	}
	return raw, nil
}

var fingerprintSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sneller.io/atompack/artifact"))

// Fingerprint returns a name-based UUID of the
// canonical encoding of a. Byte-identical
// artifacts have the same fingerprint.
func (a *Artifact) Fingerprint() (uuid.UUID, error) {
	raw, err := a.Encode()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(fingerprintSpace, raw), nil
}
