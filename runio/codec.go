// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
)

// Format is the encoding of a record stream.
type Format int

const (
	// Text encodes one base-10 record per line. Surrounding
	// whitespace is ignored and blank lines are skipped when
	// decoding.
	Text Format = iota
	// Binary encodes each record as 8 big-endian bytes.
	Binary
)

const binaryRecordSize = 8

// String returns the format's name, as accepted by ParseFormat.
func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat returns the format with the provided name.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "text":
		return Text, nil
	case "binary":
		return Binary, nil
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown format %q", name))
}

// An Encoder writes records to an underlying io.Writer in a given
// format. Output is buffered; the caller must call Flush once done.
type Encoder struct {
	w       *bufio.Writer
	format  Format
	scratch []byte
	size    int64
}

// NewEncoder returns a new Encoder that writes records in the
// provided format to w.
func NewEncoder(w io.Writer, format Format) *Encoder {
	return &Encoder{
		w:       bufio.NewWriter(w),
		format:  format,
		scratch: make([]byte, 0, 24),
	}
}

// Write implements Writer.
func (e *Encoder) Write(ctx context.Context, vals []int64) error {
	return e.Encode(vals)
}

// Encode writes the provided records.
func (e *Encoder) Encode(vals []int64) error {
	for _, v := range vals {
		p := e.scratch[:0]
		switch e.format {
		case Binary:
			p = p[:binaryRecordSize]
			binary.BigEndian.PutUint64(p, uint64(v))
		default:
			p = strconv.AppendInt(p, v, 10)
			p = append(p, '\n')
		}
		n, err := e.w.Write(p)
		e.size += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// Size returns the number of encoded bytes written so far,
// including bytes still held in the buffer.
func (e *Encoder) Size() int64 {
	return e.size
}

// NewDecodingReader returns a Reader that decodes records in the
// provided format from r.
func NewDecodingReader(r io.Reader, format Format) Reader {
	if format == Binary {
		return &binaryReader{r: bufio.NewReader(r)}
	}
	return &textReader{scan: bufio.NewScanner(r)}
}

// TextReader decodes line-oriented records. It tracks line numbers
// so that malformed records can be reported precisely.
type textReader struct {
	scan *bufio.Scanner
	line int
	err  error
}

func (t *textReader) Read(ctx context.Context, out []int64) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	var n int
	for n < len(out) {
		if !t.scan.Scan() {
			if err := t.scan.Err(); err != nil {
				t.err = errors.E(err, fmt.Sprintf("line %d", t.line+1))
			} else {
				t.err = EOF
			}
			break
		}
		t.line++
		text := bytes.TrimSpace(t.scan.Bytes())
		if len(text) == 0 {
			continue
		}
		v, err := strconv.ParseInt(string(text), 10, 64)
		if err != nil {
			t.err = errors.E(errors.Invalid, fmt.Sprintf("line %d: malformed record %q", t.line, text))
			break
		}
		out[n] = v
		n++
	}
	return n, t.err
}

type binaryReader struct {
	r   *bufio.Reader
	off int64
	buf [binaryRecordSize]byte
	err error
}

func (b *binaryReader) Read(ctx context.Context, out []int64) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	var n int
	for n < len(out) {
		m, err := io.ReadFull(b.r, b.buf[:])
		if err == io.EOF {
			b.err = EOF
			break
		}
		if err == io.ErrUnexpectedEOF {
			b.err = errors.E(errors.Integrity, fmt.Sprintf("truncated record at offset %d: %d of %d bytes", b.off, m, binaryRecordSize))
			break
		}
		if err != nil {
			b.err = err
			break
		}
		b.off += binaryRecordSize
		out[n] = int64(binary.BigEndian.Uint64(b.buf[:]))
		n++
	}
	return n, b.err
}
