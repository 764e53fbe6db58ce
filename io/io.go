package io

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Endianness used by default when writing snapshots. Snapshots of any
	// endianness can be read.
	DefaultEndiannessFlag int32 = 0

	snapshotPattern = "snap%06d.dat"
)

/*
The binary format used for snapshots is as follows:
    |-- 1 --||-- 2 --||-- ... 3 ... --||-- ... 4 ... --||-- ... 5 ... --|

    1 - (int32) Flag indicating the endianness of the file. 0 indicates a
        little endian byte ordering and -1 indicates a big endian byte order.
    2 - (int32) Size of a SnapshotHeader struct. Checked for consistency.
    3 - (SnapshotHeader) Header containing meta-information about the run.
    4 - ([][2]float64) Contiguous block of x, y coordinates.
    5 - ([][2]float64) Contiguous block of v_x, v_y velocities.
*/
type SnapshotHeader struct {
	Count int64 // Number of particles
	Step  int64 // Number of steps taken when the snapshot was written

	Time      float64 // Simulated time
	Mass      float64 // Mass of one particle
	Width     float64 // Width of the tree's root square
	G         float64
	Softening float64
	Dt        float64
}

// endianness converts an endianness flag to a byte order.
func endianness(flag int32) (binary.ByteOrder, error) {
	switch flag {
	case 0:
		return binary.LittleEndian, nil
	case -1:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("Unrecognized endianness flag, %d.", flag)
}

func readInt32(r io.Reader, order binary.ByteOrder) (int32, error) {
	var n int32
	err := binary.Read(r, order, &n)
	return n, err
}

// SnapshotName returns the name of the snapshot file written at the given
// step inside dir.
func SnapshotName(dir string, step int64) string {
	return filepath.Join(dir, fmt.Sprintf(snapshotPattern, step))
}

// ListSnapshots returns the snapshot files in dir, in step order.
func ListSnapshots(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "snap*.dat"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// WriteSnapshot writes positions and velocities to file, described by the
// given header.
func WriteSnapshot(file string, h *SnapshotHeader, xs, vs []mgl64.Vec2) error {
	if int(h.Count) != len(xs) {
		return fmt.Errorf(
			"Header count %d for file %s does not match xs length, %d.",
			h.Count, file, len(xs),
		)
	} else if int(h.Count) != len(vs) {
		return fmt.Errorf(
			"Header count %d for file %s does not match vs length, %d.",
			h.Count, file, len(vs),
		)
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}

	order, _ := endianness(DefaultEndiannessFlag)
	for _, data := range []interface{}{
		DefaultEndiannessFlag,
		int32(unsafe.Sizeof(SnapshotHeader{})),
		h, xs, vs,
	} {
		if err = binary.Write(f, order, data); err != nil {
			f.Close()
			return fmt.Errorf("Could not write snapshot %s: %w", file, err)
		}
	}

	return f.Close()
}

func readSnapshotHeaderAt(
	file string, hdBuf *SnapshotHeader,
) (*os.File, binary.ByteOrder, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}

	// Order doesn't matter for this read, since the flags are symmetric.
	flag, err := readInt32(f, binary.LittleEndian)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("Could not read snapshot %s: %w", file, err)
	}
	order, err := endianness(flag)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("Snapshot %s: %w", file, err)
	}

	headerSize, err := readInt32(f, order)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("Could not read snapshot %s: %w", file, err)
	} else if headerSize != int32(unsafe.Sizeof(SnapshotHeader{})) {
		f.Close()
		return nil, nil, fmt.Errorf(
			"Expected SnapshotHeader size of %d in %s, found %d.",
			unsafe.Sizeof(SnapshotHeader{}), file, headerSize,
		)
	}

	if err = binary.Read(f, order, hdBuf); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("Could not read snapshot %s: %w", file, err)
	} else if hdBuf.Count < 0 {
		f.Close()
		return nil, nil, fmt.Errorf(
			"Snapshot %s has negative particle count, %d.", file, hdBuf.Count,
		)
	}
	return f, order, nil
}

// ReadSnapshotHeader reads the header in the given file into hdBuf.
func ReadSnapshotHeader(file string, hdBuf *SnapshotHeader) error {
	f, _, err := readSnapshotHeaderAt(file, hdBuf)
	if err != nil {
		return err
	}
	return f.Close()
}

// ReadSnapshot reads the header, positions, and velocities in the given file.
func ReadSnapshot(
	file string,
) (h *SnapshotHeader, xs, vs []mgl64.Vec2, err error) {
	h = &SnapshotHeader{}
	f, order, err := readSnapshotHeaderAt(file, h)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	xs = make([]mgl64.Vec2, h.Count)
	vs = make([]mgl64.Vec2, h.Count)
	if err = binary.Read(f, order, xs); err != nil {
		return nil, nil, nil, fmt.Errorf("Could not read positions of %s: %w", file, err)
	}
	if err = binary.Read(f, order, vs); err != nil {
		return nil, nil, nil, fmt.Errorf("Could not read velocities of %s: %w", file, err)
	}
	return h, xs, vs, nil
}
