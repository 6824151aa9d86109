// Package persist stores state values in files through pluggable codecs.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Codec serializes one state value to a stream and back.
type Codec interface {
	Encode(w io.Writer, state any) error
	// Decode fills state, which must be a pointer.
	Decode(r io.Reader, state any) error
	// Extension is the file suffix, including the dot.
	Extension() string
}

// streamCodec adapts a pair of stdlib-style stream encoders to Codec.
type streamCodec struct {
	name string
	ext  string
	enc  func(w io.Writer) interface{ Encode(v any) error }
	dec  func(r io.Reader) interface{ Decode(v any) error }
}

func (c streamCodec) Encode(w io.Writer, state any) error {
	err := c.enc(w).Encode(state)
	if err != nil {
		return fmt.Errorf("%s encode: %w", c.name, err)
	}

	return nil
}

func (c streamCodec) Decode(r io.Reader, state any) error {
	err := c.dec(r).Decode(state)
	if err != nil {
		return fmt.Errorf("%s decode: %w", c.name, err)
	}

	return nil
}

func (c streamCodec) Extension() string {
	return c.ext
}

// NewJSONCodec writes one compact JSON document per file.
func NewJSONCodec() Codec {
	return streamCodec{
		name: "json",
		ext:  ".json",
		enc:  func(w io.Writer) interface{ Encode(v any) error } { return json.NewEncoder(w) },
		dec:  func(r io.Reader) interface{ Decode(v any) error } { return json.NewDecoder(r) },
	}
}

// NewGobCodec writes gob, which keeps float64 bit patterns and is smaller
// than JSON for large chain sets.
func NewGobCodec() Codec {
	return streamCodec{
		name: "gob",
		ext:  ".gob",
		enc:  func(w io.Writer) interface{ Encode(v any) error } { return gob.NewEncoder(w) },
		dec:  func(r io.Reader) interface{ Decode(v any) error } { return gob.NewDecoder(r) },
	}
}

// LZ4Codec frames the output of another codec with LZ4 compression.
type LZ4Codec struct {
	Inner Codec
	// Level is the compression level; the zero value is lz4.Fast.
	Level lz4.CompressionLevel
}

// NewLZ4Codec compresses the output of inner at the fastest level.
func NewLZ4Codec(inner Codec) *LZ4Codec {
	return &LZ4Codec{Inner: inner, Level: lz4.Fast}
}

// Encode streams the inner encoding through an LZ4 frame writer.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	err := zw.Apply(lz4.CompressionLevelOption(c.Level))
	if err != nil {
		return fmt.Errorf("lz4 options: %w", err)
	}

	err = c.Inner.Encode(zw, state)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("lz4 close: %w", err)
	}

	return nil
}

// Decode decompresses r before handing it to the inner codec.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	return c.Inner.Decode(lz4.NewReader(r), state)
}

// Extension appends ".lz4" to the inner extension.
func (c *LZ4Codec) Extension() string {
	return c.Inner.Extension() + ".lz4"
}
