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

// Package compr provides a unified interface wrapping
// third-party compression libraries.
package compr

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor describes a compression algorithm.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress should append the compressed contents
	// of src to dst and return the result.
	Compress(src, dst []byte) []byte
}

// Decompressor describes a decompression algorithm.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	// See also Compressor.Name.
	Name() string
	// Decompress decompresses source data
	// into dst. It should error out if
	// the decoded data does not exactly fill dst.
	//
	// It must be safe to make multiple
	// calls to Decompress simultaneously
	// from different goroutines.
	Decompress(src, dst []byte) error
}

// Names returns the names accepted by
// Compression, in order of increasing effort.
func Names() []string {
	return []string{"none", "s2", "zstd", "zstd-better"}
}

type zstdCompressor struct {
	name string
	enc  *zstd.Encoder
}

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCompressor) Name() string { return z.name }

var zstdDecoder *zstd.Decoder

func init() {
	// by default, concurrency is set to min(4, GOMAXPROCS);
	// we'd like it to *always* be GOMAXPROCS
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
}

type zstdDecompressor zstd.Decoder

func (z *zstdDecompressor) Name() string { return "zstd" }

func (z *zstdDecompressor) Decompress(src, dst []byte) error {
	ret, err := (*zstd.Decoder)(z).DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		return err
	}
	return fill("zstd", ret, dst)
}

type s2Compressor struct{}

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Compressor) Decompress(src, dst []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("s2 decompress: expected %d bytes decompressed; got %d", len(dst), n)
	}
	_, err = s2.Decode(dst, src)
	return err
}

func (s2Compressor) Name() string { return "s2" }

type noCompression struct{}

func (noCompression) Name() string { return "none" }

func (noCompression) Compress(src, dst []byte) []byte { return append(dst, src...) }

func (noCompression) Decompress(src, dst []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("expected %d bytes; got %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// fill checks that a decoder wrote
// exactly len(dst) bytes into dst.
func fill(name string, ret, dst []byte) error {
	if len(ret) != len(dst) {
		return fmt.Errorf("%s decompress: expected %d bytes decompressed; got %d", name, len(dst), len(ret))
	}
	// the decoder should not have had to
	// realloc the buffer
	if len(dst) > 0 && &ret[0] != &dst[0] {
		return fmt.Errorf("%s decompress: output buffer realloc'd", name)
	}
	return nil
}

// Compression selects a compression algorithm by name.
// The returned Compressor will return the same value
// for Compressor.Name as the specified name.
// Compression returns nil for an unknown name.
func Compression(name string) Compressor {
	switch name {
	case "zstd-better":
		z, _ := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderConcurrency(1))
		return zstdCompressor{name: name, enc: z}
	case "zstd":
		z, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCompressor{name: name, enc: z}
	case "s2":
		return s2Compressor{}
	case "none":
		return noCompression{}
	default:
		return nil
	}
}

// Decompression selects a decompression algorithm
// by name. Data written by "zstd-better" is read
// by the "zstd" decompressor.
// Decompression returns nil for an unknown name.
func Decompression(name string) Decompressor {
	switch name {
	case "zstd", "zstd-better":
		return (*zstdDecompressor)(zstdDecoder)
	case "s2":
		return s2Compressor{}
	case "none":
		return noCompression{}
	default:
		return nil
	}
}
