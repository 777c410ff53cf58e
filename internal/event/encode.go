package event

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is a wire encoding for events.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMsgpack:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown event format %q (must be json or msgpack)", s)
}

// Encoder writes a stream of values in one format.
// JSON values are newline-delimited; msgpack values are concatenated.
type Encoder struct {
	format Format
	json   *json.Encoder
	mp     *msgpack.Encoder
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, format Format) (*Encoder, error) {
	switch format {
	case FormatJSON:
		return &Encoder{format: format, json: json.NewEncoder(w)}, nil
	case FormatMsgpack:
		return &Encoder{format: format, mp: msgpack.NewEncoder(w)}, nil
	}
	return nil, fmt.Errorf("unknown event format %q", format)
}

// Encode writes one value.
func (e *Encoder) Encode(v any) error {
	if e.format == FormatMsgpack {
		return e.mp.Encode(v)
	}
	return e.json.Encode(v)
}

// Decoder reads values written by Encoder.
type Decoder struct {
	format Format
	json   *json.Decoder
	mp     *msgpack.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, format Format) (*Decoder, error) {
	switch format {
	case FormatJSON:
		return &Decoder{format: format, json: json.NewDecoder(r)}, nil
	case FormatMsgpack:
		return &Decoder{format: format, mp: msgpack.NewDecoder(r)}, nil
	}
	return nil, fmt.Errorf("unknown event format %q", format)
}

// Decode reads the next value into v. It returns io.EOF at the end of the stream.
func (d *Decoder) Decode(v any) error {
	if d.format == FormatMsgpack {
		return d.mp.Decode(v)
	}
	return d.json.Decode(v)
}
