// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package embedding

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Binary matrix file layout, little-endian:
//
//	magic   uint32
//	version uint32
//	count   uint32
//	dim     uint32
//	data    count*dim float32
const (
	magicVectors uint32 = 0x52564543 // "RVEC"
	magicIndex   uint32 = 0x52494458 // "RIDX"

	formatVersion uint32 = 1
)

// writeVectors persists a matrix atomically via a temp sibling file.
func writeVectors(path string, magic uint32, vectors [][]float32) error {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dim %d, expected %d", i, len(v), dim)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp vector file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	writeErr := func() error {
		for _, v := range []uint32{magic, formatVersion, uint32(len(vectors)), uint32(dim)} {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for _, vec := range vectors {
			if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
				return err
			}
		}
		return w.Flush()
	}()
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write vector file %s: %w", path, writeErr)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace vector file %s: %w", path, err)
	}
	return nil
}

// readVectors loads a matrix, validating magic and version.
func readVectors(path string, magic uint32) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("read vector header %s: %w", path, err)
		}
	}
	if header[0] != magic {
		return nil, fmt.Errorf("vector file %s has wrong magic %#x", path, header[0])
	}
	if header[1] != formatVersion {
		return nil, fmt.Errorf("vector file %s has unsupported version %d", path, header[1])
	}

	count, dim := int(header[2]), int(header[3])
	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector %d from %s: %w", i, path, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
