package geometry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
)

const (
	gpkgHeaderSize   = 8
	wkbPrefixSize    = 9
	wkbLittleEndian  = 1
	wkbLineString    = 2
	wkbHasZ          = 0x80000000
	wkbTypeMask      = 0x0FFFFFFF
	envelopeMask     = 0x0E
	envelopeShift    = 1
	maxEnvelopeFlags = 4
)

// envelope sizes in bytes, indexed by the envelope indicator.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

type Check string

const (
	CheckNull         Check = "null blob"
	CheckHeaderLength Check = "header length"
	CheckMagic        Check = "magic"
	CheckVersion      Check = "version"
	CheckEnvelope     Check = "envelope indicator"
	CheckByteOrder    Check = "byte order"
	CheckGeometryType Check = "geometry type"
	CheckLength       Check = "insufficient length"
)

// MalformedGeometryError reports which validation step rejected a geometry blob.
type MalformedGeometryError struct {
	Check      Check
	BoundaryID string
	Reason     string
}

func (e *MalformedGeometryError) Error() string {
	if e.BoundaryID != "" {
		return fmt.Sprintf("malformed geometry for boundary %q: %s: %s", e.BoundaryID, e.Check, e.Reason)
	}
	return fmt.Sprintf("malformed geometry: %s: %s", e.Check, e.Reason)
}

func malformed(check Check, format string, args ...any) error {
	return &MalformedGeometryError{Check: check, Reason: fmt.Sprintf(format, args...)}
}

// DecodeGeoPackageLineString decodes a GeoPackage binary blob holding a little-endian WKB
// LineString, with or without Z. Points without Z get z = 0.
func DecodeGeoPackageLineString(blob []byte) (datastructure.LineString, error) {
	if blob == nil {
		return nil, malformed(CheckNull, "geometry blob is null")
	}
	if len(blob) < gpkgHeaderSize {
		return nil, malformed(CheckHeaderLength, "blob is %d bytes, need at least %d", len(blob), gpkgHeaderSize)
	}
	if blob[0] != 'G' || blob[1] != 'P' {
		return nil, malformed(CheckMagic, "expected \"GP\", got %q", blob[0:2])
	}
	if blob[2] != 0 {
		return nil, malformed(CheckVersion, "unsupported version %d", blob[2])
	}

	indicator := int(blob[3]&envelopeMask) >> envelopeShift
	if indicator > maxEnvelopeFlags {
		return nil, malformed(CheckEnvelope, "invalid envelope indicator %d", indicator)
	}
	// bytes 4..7 hold the srs id, which is not used.
	offset := gpkgHeaderSize + envelopeSizes[indicator]

	if len(blob) < offset+wkbPrefixSize {
		return nil, malformed(CheckLength, "blob is %d bytes, wkb header needs %d", len(blob), offset+wkbPrefixSize)
	}
	wkb := blob[offset:]

	if wkb[0] != wkbLittleEndian {
		return nil, malformed(CheckByteOrder, "only little endian wkb is supported, got %d", wkb[0])
	}

	geomType := binary.LittleEndian.Uint32(wkb[1:5])
	hasZ := geomType&wkbHasZ != 0
	if geomType&wkbTypeMask != wkbLineString {
		return nil, malformed(CheckGeometryType, "expected LineString (2), got %d", geomType&wkbTypeMask)
	}

	numPoints := uint64(binary.LittleEndian.Uint32(wkb[5:9]))
	stride := uint64(16)
	if hasZ {
		stride = 24
	}
	// numPoints*stride stays below 2^37, well inside uint64.
	need := uint64(wkbPrefixSize) + numPoints*stride
	if uint64(len(wkb)) < need {
		return nil, malformed(CheckLength, "%d points need %d bytes, got %d", numPoints, need, len(wkb))
	}

	points := make(datastructure.LineString, 0, numPoints)
	pos := wkbPrefixSize
	for i := uint64(0); i < numPoints; i++ {
		x := readFloat64(wkb[pos:])
		y := readFloat64(wkb[pos+8:])
		z := 0.0
		if hasZ {
			z = readFloat64(wkb[pos+16:])
		}
		points = append(points, datastructure.NewPoint(x, y, z))
		pos += int(stride)
	}
	return points, nil
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
