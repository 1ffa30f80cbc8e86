package memory

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"
)

// persist rewrites the on-disk layout. Callers hold the write lock. Both
// files go through a temp-and-rename so a crash never leaves a torn file.
func (s *Store) persist() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := s.writeIndex(); err != nil {
		return err
	}
	return s.writeMetadata()
}

func (s *Store) writeIndex() error {
	dim := 0
	if s.index != nil {
		dim = s.index.dim
	}
	buf := make([]byte, 8+4*dim*len(s.records))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(dim))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(s.records)))
	off := 8
	for _, vec := range s.indexVectors() {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	return writeAtomic(filepath.Join(s.dir, indexFile), buf)
}

func (s *Store) indexVectors() [][]float32 {
	if s.index == nil {
		return nil
	}
	return s.index.vectors
}

func (s *Store) writeMetadata() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, metadataFile), data)
}

// load restores records and the index from disk. Any inconsistency is an
// error; the caller cold-starts empty.
func (s *Store) load() error {
	metaPath := filepath.Join(s.dir, metadataFile)
	metaData, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var records []Record
	if err := json.Unmarshal(metaData, &records); err != nil {
		return fmt.Errorf("decode %s: %w", metadataFile, err)
	}

	indexData, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err != nil {
		return err
	}
	if len(indexData) < 8 {
		return fmt.Errorf("%s: truncated header", indexFile)
	}
	dim := int(binary.LittleEndian.Uint32(indexData[0:4]))
	count := int(binary.LittleEndian.Uint32(indexData[4:8]))
	if count != len(records) {
		return fmt.Errorf("%s holds %d vectors, %s holds %d records", indexFile, count, metadataFile, len(records))
	}
	if len(indexData) != 8+4*dim*count {
		return fmt.Errorf("%s: size does not match header", indexFile)
	}

	index := newFlatIndex(dim)
	off := 8
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(indexData[off : off+4]))
			off += 4
		}
		records[i].Embedding = vec
		index.vectors = append(index.vectors, vec)
	}

	s.records = records
	if count > 0 || dim > 0 {
		s.index = index
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
