// Package wire implements the regcat request/response protocol.
//
// A connection carries exactly one request followed by exactly one response.
// Every value travels as a self-delimiting frame: one JSON object per line
// carrying the protocol version, a tag naming the value, and the value
// itself. Readers check both version and tag, so a peer speaking a different
// schema fails with a ProtocolError instead of silently misreading data.
package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"
)

// Version is the protocol version written into every frame.
const Version = 1

// Tag names the value carried by a frame.
type Tag string

const (
	TagIsSearch  Tag = "is_search"
	TagCriteria  Tag = "criteria"
	TagClassID   Tag = "class_id"
	TagSuccess   Tag = "success"
	TagSummaries Tag = "summaries"
	TagDetail    Tag = "detail"
	TagFailure   Tag = "failure"
)

type frame struct {
	V    int             `json:"v"`
	Tag  Tag             `json:"tag"`
	Data json.RawMessage `json:"data"`
}

// ProtocolError reports a malformed, unexpected or truncated message.
type ProtocolError struct {
	Op  string // what was being read or written, e.g. "read success"
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrTruncated is wrapped by ProtocolError when the peer closed the
// connection before the full message arrived.
var ErrTruncated = errors.New("connection closed before message was complete")

// ErrInvalidUTF8 is wrapped by ProtocolError when a value carries a string
// that is not valid UTF-8. JSON would silently replace the bad bytes, so such
// values are refused on both ends instead.
var ErrInvalidUTF8 = errors.New("string is not valid UTF-8")

// checkUTF8 walks the exported strings reachable from v.
func checkUTF8(v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: %q", ErrInvalidUTF8, v.String())
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return checkUTF8(v.Elem())
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkUTF8(v.Field(i)); err != nil {
				return fmt.Errorf("%s: %w", t.Field(i).Name, err)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkUTF8(v.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkUTF8(iter.Key()); err != nil {
				return err
			}
			if err := checkUTF8(iter.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encoder writes frames to a buffered writer. Nothing reaches the underlying
// writer until Flush.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode appends one frame.
func (e *Encoder) Encode(tag Tag, v any) error {
	if err := checkUTF8(reflect.ValueOf(v)); err != nil {
		return &ProtocolError{Op: "encode " + string(tag), Err: err}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return &ProtocolError{Op: "encode " + string(tag), Err: err}
	}
	line, err := json.Marshal(frame{V: Version, Tag: tag, Data: data})
	if err != nil {
		return &ProtocolError{Op: "encode " + string(tag), Err: err}
	}
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", tag, err)
	}
	return nil
}

// Flush sends everything encoded so far.
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Decoder reads frames, blocking until each one has fully arrived.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next frame, checks that it carries want, and unmarshals
// its value into v.
func (d *Decoder) Decode(want Tag, v any) error {
	op := "read " + string(want)

	var f frame
	if err := d.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ProtocolError{Op: op, Err: ErrTruncated}
		}
		// Resets and timeouts stay wrapped so errors.Is/As can still see them.
		return &ProtocolError{Op: op, Err: err}
	}
	if f.V != Version {
		return &ProtocolError{Op: op, Err: fmt.Errorf("unsupported version %d (want %d)", f.V, Version)}
	}
	if f.Tag != want {
		return &ProtocolError{Op: op, Err: fmt.Errorf("unexpected tag %q", f.Tag)}
	}
	if len(f.Data) == 0 {
		return &ProtocolError{Op: op, Err: errors.New("missing data")}
	}
	if !utf8.Valid(f.Data) {
		return &ProtocolError{Op: op, Err: ErrInvalidUTF8}
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}
