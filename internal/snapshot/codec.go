package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// magic opens every image file; the byte after it names the codec.
var magic = []byte("HWIMG")

// ErrNotImage is returned for input without the image header.
var ErrNotImage = errors.New("snapshot: not a heap image")

// Codec encodes image payloads.
type Codec interface {
	Name() string
	id() byte
	Marshal(img *Image) ([]byte, error)
	Unmarshal(data []byte) (*Image, error)
}

var (
	// Msgpack is the default codec.
	Msgpack Codec = msgpackCodec{}
	// CBOR encodes canonically: equal images give equal bytes.
	CBOR Codec = cborCodec{}
)

var codecs = []Codec{Msgpack, CBOR}

// CodecNames lists the supported image formats, default first.
func CodecNames() []string {
	names := make([]string, len(codecs))
	for i, c := range codecs {
		names[i] = c.Name()
	}
	return names
}

// CodecByName resolves a configuration value to a Codec.
func CodecByName(name string) (Codec, error) {
	for _, c := range codecs {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("snapshot: unknown image format %q (expected: msgpack|cbor)", name)
}

func codecByID(id byte) (Codec, error) {
	for _, c := range codecs {
		if c.id() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("snapshot: unknown codec id %d", id)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) id() byte     { return 1 }

func (msgpackCodec) Marshal(img *Image) ([]byte, error) {
	return msgpack.Marshal(img)
}

func (msgpackCodec) Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := msgpack.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: msgpack: %w", err)
	}
	return &img, nil
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }
func (cborCodec) id() byte     { return 2 }

func (cborCodec) Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

func (cborCodec) Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("snapshot: cbor: %w", err)
	}
	return &img, nil
}

// Encode returns the framed encoding of img: header, codec id, payload.
func Encode(img *Image, c Codec) ([]byte, error) {
	payload, err := c.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %s encode: %w", c.Name(), err)
	}
	out := make([]byte, 0, len(magic)+1+len(payload))
	out = append(out, magic...)
	out = append(out, c.id())
	return append(out, payload...), nil
}

// Decode parses a framed image, selecting the codec from the header.
func Decode(data []byte) (*Image, Codec, error) {
	if len(data) <= len(magic) || !bytes.Equal(data[:len(magic)], magic) {
		return nil, nil, ErrNotImage
	}
	c, err := codecByID(data[len(magic)])
	if err != nil {
		return nil, nil, err
	}
	img, err := c.Unmarshal(data[len(magic)+1:])
	if err != nil {
		return nil, nil, err
	}
	return img, c, nil
}

// Write encodes img to w.
func Write(w io.Writer, img *Image, c Codec) error {
	data, err := Encode(img, c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read decodes one image from r.
func Read(r io.Reader) (*Image, Codec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	return Decode(data)
}
