package zip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32Conformance(t *testing.T) {
	assert.Equal(t, uint32(0xC0A1FB36), crc32IEEE([]byte("TestData")))

	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	assert.Equal(t, uint32(0x29058C73), crc32IEEE(buf))
}

func TestDOSDateTimeRoundTrip(t *testing.T) {
	date, tm := packDOSDateTime(2020, 1, 2, 3, 4, 6)
	year, month, day, hour, minute, second := unpackDOSDateTime(date, tm)
	assert.Equal(t, 2020, year)
	assert.Equal(t, 1, month)
	assert.Equal(t, 2, day)
	assert.Equal(t, 3, hour)
	assert.Equal(t, 4, minute)
	assert.Equal(t, 6, second) // 2-second resolution, 6 is exactly representable
}

func TestDOSDateTimeOutOfRangeEncodesZero(t *testing.T) {
	date, tm := packDOSDateTime(1970, 1, 1, 0, 0, 0)
	assert.Equal(t, uint16(0), date)
	assert.Equal(t, uint16(0), tm)
}

func TestLocalFileHeaderRoundTrip(t *testing.T) {
	h := localFileHeader{
		VersionNeeded:     versionNeeded,
		Flags:             0,
		CompressionMethod: Deflate,
		ModTime:           0x1234,
		ModDate:           0x5678,
		CRC32:             0xDEADBEEF,
		CompressedSize:    10,
		UncompressedSize:  20,
		NameLength:        7,
		ExtraLength:       0,
	}
	got, err := decodeLocalFileHeader(encodeLocalFileHeader(h))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeLocalFileHeaderBadSignature(t *testing.T) {
	b := encodeLocalFileHeader(localFileHeader{})
	b[0] ^= 0xFF
	_, err := decodeLocalFileHeader(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStructural)
}

func TestCentralDirHeaderRoundTrip(t *testing.T) {
	h := centralDirHeader{
		VersionMadeBy:     versionNeeded,
		VersionNeeded:     versionNeeded,
		CompressionMethod: Store,
		CRC32:             1,
		CompressedSize:    2,
		UncompressedSize:  2,
		NameLength:        3,
		LocalHeaderOffset: 99,
	}
	got, err := decodeCentralDirHeader(encodeCentralDirHeader(h))
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestEOCDRoundTrip(t *testing.T) {
	e := endOfCentralDir{
		EntriesThisDisk: 3,
		TotalEntries:    3,
		CDSize:          120,
		CDOffset:        40,
		CommentLength:   5,
	}
	got, err := decodeEOCD(encodeEOCD(e))
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
