// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Read reads and parses from r the header of a safetensors stream,
// leaving r positioned at the beginning of the byte-buffer.
//
// No validation is performed on the obtained Header: see Header.Validate.
//
// The caller is responsible for guarding against huge headers, for example
// by providing an io.LimitedReader.
func Read(r io.Reader) (Header, error) {
	size, err := readHeaderSize(r)
	switch {
	case err != nil:
		return Header{}, err
	case size < 2: // "{}"
		return Header{}, fmt.Errorf("header size too small: %d", size)
	case size > math.MaxInt-8:
		return Header{}, fmt.Errorf("header size too large: %d", size)
	}

	raw, err := decodeJSON(r, int64(size))
	if err != nil {
		return Header{}, fmt.Errorf("failed to JSON-decode header: %w", err)
	}
	h, err := convertRaw(raw)
	if err != nil {
		return Header{}, err
	}
	h.ByteBufferOffset = 8 + int(size)
	return h, nil
}

func readHeaderSize(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read header size: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// decodeJSON decodes a JSON object from exactly the next "size" bytes of r,
// allowing trailing whitespace padding.
func decodeJSON(r io.Reader, size int64) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(&io.LimitedReader{R: r, N: size})
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("header is not a JSON object")
	}
	if off := dec.InputOffset(); off != size {
		if _, err := dec.Token(); err == nil {
			return nil, fmt.Errorf("unexpected data at byte offset %d", off)
		} else if err != io.EOF {
			return nil, err
		}
	}
	return raw, nil
}

func convertRaw(raw map[string]json.RawMessage) (h Header, err error) {
	if rawMeta, ok := raw[metadataKey]; ok {
		delete(raw, metadataKey)
		if err = json.Unmarshal(rawMeta, &h.Metadata); err != nil {
			return Header{}, fmt.Errorf("failed to interpret header metadata: %w", err)
		}
		if len(h.Metadata) == 0 {
			h.Metadata = nil
		}
	}
	if len(raw) == 0 {
		return h, nil
	}
	h.Tensors = make(TensorMap, len(raw))
	for name, rawTensor := range raw {
		t, err := convertRawTensor(name, rawTensor)
		if err != nil {
			return Header{}, fmt.Errorf("failed to interpret header tensor %q: %w", name, err)
		}
		h.Tensors[name] = t
	}
	return h, nil
}

func convertRawTensor(name string, raw json.RawMessage) (Tensor, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var jt jsonTensor
	if err := dec.Decode(&jt); err != nil {
		return Tensor{}, err
	}
	switch {
	case jt.DType == nil:
		return Tensor{}, errors.New(`"dtype" is missing`)
	case jt.Shape == nil:
		return Tensor{}, errors.New(`"shape" is missing`)
	case jt.DataOffsets == nil:
		return Tensor{}, errors.New(`"data_offsets" is missing`)
	}
	for i, v := range *jt.Shape {
		if v < 0 {
			return Tensor{}, fmt.Errorf(`negative "shape" value at index %d: %d`, i, v)
		}
	}
	return Tensor{
		Name:        name,
		DType:       *jt.DType,
		Shape:       *jt.Shape,
		DataOffsets: *jt.DataOffsets,
	}, nil
}
