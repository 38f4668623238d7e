// storage.go - file-backed persisted track storage (SD-spill variant)
//
// Grounded on Memory.h's MemorySd (flat per-track file, batched flush/
// fetch) and file_io.go's sanitizePath (reject absolute paths and "..",
// confine every access to one base directory) — reused directly, since
// both solve "don't let a caller-supplied name escape a directory sandbox".

package looper

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TrackStore is the narrow port a Track's maintenance tier spills through.
// Implementations must tolerate concurrent use across different trackIDs
// but are never called concurrently for the same trackID (the maintenance
// task serializes per-track access).
type TrackStore interface {
	// Flush appends blocks to trackID's file.
	Flush(trackID int, blocks []Block) error
	// Fetch reads count blocks starting at blockIndex from trackID's file.
	// Short reads (fewer than count blocks available) return only the
	// blocks actually present; no error.
	Fetch(trackID int, blockIndex, count int) ([]Block, error)
	// Remove deletes trackID's file, if any.
	Remove(trackID int) error
	// RemoveAll deletes every track file under the store's base directory.
	// Called once at startup per spec's persisted-state contract.
	RemoveAll() error
}

// fileTrackStore is the default TrackStore: one flat, headerless,
// little-endian int16 file per track, named track_<id>.bin, confined to
// baseDir.
type fileTrackStore struct {
	baseDir string
}

// NewFileTrackStore returns a TrackStore rooted at baseDir. baseDir is
// created if absent.
func NewFileTrackStore(baseDir string) (TrackStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		abs = baseDir
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &fileTrackStore{baseDir: abs}, nil
}

func (s *fileTrackStore) pathFor(trackID int) (string, bool) {
	name := fmt.Sprintf("track_%d.bin", trackID)
	if strings.Contains(name, "..") {
		return "", false
	}
	full := filepath.Join(s.baseDir, name)
	rel, err := filepath.Rel(s.baseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

func (s *fileTrackStore) Flush(trackID int, blocks []Block) error {
	path, ok := s.pathFor(trackID)
	if !ok {
		return fmt.Errorf("looper: invalid track id %d", trackID)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, BlockSamples*2)
	for _, b := range blocks {
		for i, s := range b {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileTrackStore) Fetch(trackID int, blockIndex, count int) ([]Block, error) {
	path, ok := s.pathFor(trackID)
	if !ok {
		return nil, fmt.Errorf("looper: invalid track id %d", trackID)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	bytesPerBlock := int64(BlockSamples * 2)
	if _, err := f.Seek(int64(blockIndex)*bytesPerBlock, 0); err != nil {
		return nil, err
	}

	raw := make([]byte, bytesPerBlock)
	var out []Block
	for i := 0; i < count; i++ {
		n, err := f.Read(raw)
		if n < len(raw) {
			break
		}
		block := make(Block, BlockSamples)
		for j := 0; j < BlockSamples; j++ {
			block[j] = int16(binary.LittleEndian.Uint16(raw[j*2:]))
		}
		out = append(out, block)
		if err != nil {
			break
		}
	}
	return out, nil
}

func (s *fileTrackStore) Remove(trackID int) error {
	path, ok := s.pathFor(trackID)
	if !ok {
		return fmt.Errorf("looper: invalid track id %d", trackID)
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *fileTrackStore) RemoveAll() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "track_") && strings.HasSuffix(e.Name(), ".bin") {
			if err := os.Remove(filepath.Join(s.baseDir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
