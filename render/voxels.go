package render

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"
)

// voxels is the scalar storage behind a volume.  Values are stored x-fastest,
// i.e., index = (z*ny + y)*nx + x.
type voxels interface {
	At(i int) float32
	Len() int
	SizeBytes() int64
}

type floatVoxels []float32

func (v floatVoxels) At(i int) float32 { return v[i] }
func (v floatVoxels) Len() int          { return len(v) }
func (v floatVoxels) SizeBytes() int64  { return int64(len(v)) * 4 }

// mappedVoxels decodes little-endian float32 values straight out of a
// memory-mapped raw file.  The mapping is released by the mmap finalizer
// once no frame references it any longer.
type mappedVoxels struct {
	r *mmap.ReaderAt
	n int
}

func (v mappedVoxels) At(i int) float32 {
	j := 4 * i
	bits := uint32(v.r.At(j)) | uint32(v.r.At(j+1))<<8 | uint32(v.r.At(j+2))<<16 | uint32(v.r.At(j+3))<<24
	return math.Float32frombits(bits)
}

func (v mappedVoxels) Len() int         { return v.n }
func (v mappedVoxels) SizeBytes() int64 { return int64(v.n) * 4 }

// Encoding identifies how volume data is stored on disk.
type Encoding uint8

const (
	RawEncoding Encoding = iota
	GzipEncoding
	ZstdEncoding
	SnappyEncoding
	NetCDFEncoding
)

func (e Encoding) String() string {
	switch e {
	case RawEncoding:
		return "raw"
	case GzipEncoding:
		return "gzip"
	case ZstdEncoding:
		return "zstd"
	case SnappyEncoding:
		return "snappy"
	case NetCDFEncoding:
		return "netcdf"
	default:
		return fmt.Sprintf("unknown encoding %d", e)
	}
}

// EncodingOf returns the volume encoding implied by a file's extension.
// Files with unrecognized extensions are assumed to be raw float32 data.
func EncodingOf(filename string) Encoding {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gz":
		return GzipEncoding
	case ".zst", ".zstd":
		return ZstdEncoding
	case ".sz", ".snappy":
		return SnappyEncoding
	case ".nc", ".cdf", ".netcdf":
		return NetCDFEncoding
	default:
		return RawEncoding
	}
}

// loadVoxels reads n scalar values from the given file.  If mapped is true and the
// file is uncompressed raw data, the file is memory-mapped instead of read.
func loadVoxels(filename, variable string, n int, mapped bool) (voxels, error) {
	enc := EncodingOf(filename)
	if enc == NetCDFEncoding {
		return readNetCDF(filename, variable, n)
	}
	if enc == RawEncoding && mapped {
		return mapRaw(filename, n)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader
	switch enc {
	case GzipEncoding:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip volume %q: %v", filename, err)
		}
		defer gz.Close()
		r = gz
	case ZstdEncoding:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening zstd volume %q: %v", filename, err)
		}
		defer zr.Close()
		r = zr
	case SnappyEncoding:
		r = snappy.NewReader(f)
	default:
		r = f
	}
	data, err := readFloat32s(r, n)
	if err != nil {
		return nil, fmt.Errorf("reading %s volume %q: %v", enc, filename, err)
	}
	return data, nil
}

func readFloat32s(r io.Reader, n int) (floatVoxels, error) {
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("expected %d float32 values: %v", n, err)
	}
	data := make(floatVoxels, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return data, nil
}

func mapRaw(filename string, n int) (voxels, error) {
	r, err := mmap.Open(filename)
	if err != nil {
		return nil, err
	}
	if r.Len() < 4*n {
		r.Close()
		return nil, fmt.Errorf("raw volume %q has %d bytes, expected at least %d", filename, r.Len(), 4*n)
	}
	return mappedVoxels{r: r, n: n}, nil
}

// readNetCDF reads a numeric variable from a NetCDF classic file.
func readNetCDF(filename, variable string, n int) (voxels, error) {
	if variable == "" {
		return nil, fmt.Errorf("NetCDF volume %q requires a variable name", filename)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("opening NetCDF volume %q: %v", filename, err)
	}
	lengths := nc.Header.Lengths(variable)
	if lengths == nil {
		return nil, fmt.Errorf("variable %q not found in %q", variable, filename)
	}
	total := 1
	for _, l := range lengths {
		total *= l
	}
	if total != n {
		return nil, fmt.Errorf("variable %q in %q has %d values (dims %v), expected %d", variable, filename, total, lengths, n)
	}

	r := nc.Reader(variable, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q from %q: %v", variable, filename, err)
	}
	data := make(floatVoxels, n)
	switch vals := buf.(type) {
	case []float32:
		copy(data, vals)
	case []float64:
		for i, v := range vals {
			data[i] = float32(v)
		}
	case []int32:
		for i, v := range vals {
			data[i] = float32(v)
		}
	case []int16:
		for i, v := range vals {
			data[i] = float32(v)
		}
	case []uint8:
		for i, v := range vals {
			data[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("variable %q in %q has unsupported type %T", variable, filename, buf)
	}
	return data, nil
}
