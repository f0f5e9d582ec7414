package zip

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedModTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func writeToBuf(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := a.WriteArchive(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// Scenario 1: addData synthesizes the parent directory and round-trips the payload.
func TestScenario1_AddDataAndReadBack(t *testing.T) {
	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)

	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "foobar/", entries[0].Name())
	assert.Equal(t, "foobar/test.txt", entries[1].Name())

	var out bytes.Buffer
	_, err = entries[1].ReadContent(&out)
	require.NoError(t, err)
	assert.Equal(t, "TestData", out.String())
}

// Scenario 2: a bare comment survives a round trip on an otherwise empty archive.
func TestScenario2_CommentRoundTrip(t *testing.T) {
	a := New()
	require.NoError(t, a.SetComment("hello"))

	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "hello", reopened.GetComment())
	assert.Equal(t, 0, reopened.GetNumberOfEntries())
}

// Scenario 3: a Store-or-Deflate payload of arbitrary bytes round-trips exactly,
// and its CRC-32 matches the conformance value from spec.md §8.
func TestScenario3_BinaryPayloadRoundTrip(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	a := New()
	entry, err := a.AddData("a.bin", data, fixedModTime)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x29058C73), entry.CRC32())

	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetEntry("a.bin")
	require.True(t, ok)
	assert.Equal(t, uint32(0x29058C73), got.CRC32())

	var out bytes.Buffer
	_, err = got.ReadContent(&out)
	require.NoError(t, err)
	assert.Equal(t, data, out.Bytes())
}

// Scenario 4: getEntry on a missing name reports absent; hasEntry reports a
// synthesized directory present.
func TestScenario4_GetEntryHasEntry(t *testing.T) {
	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)
	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.GetEntry("missing")
	assert.False(t, ok)
	assert.True(t, reopened.HasEntry("foobar/"))
}

// Scenario 5: flipping a byte inside the compressed payload is caught on
// read, not silently accepted. The serialized layout here is: entry0
// "foobar/" (LFH 30 + name 7 = bytes [0,37)); entry1 "foobar/test.txt"'s
// LFH+name occupy [37,82) (LFH 30 + name 15), so its compressed payload
// starts at offset 82. Byte 85 sits inside that payload, not in either
// entry's fixed header.
func TestScenario5_CorruptedPayloadDetected(t *testing.T) {
	const corruptOffset = 85

	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)
	raw := writeToBuf(t, a)

	require.Greater(t, len(raw), corruptOffset)
	corrupt := append([]byte(nil), raw...)
	corrupt[corruptOffset] ^= 0xFF

	reopened, err := OpenMemory(corrupt, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	entry, ok := reopened.GetEntry("foobar/test.txt")
	require.True(t, ok)

	var out bytes.Buffer
	_, err = entry.ReadContent(&out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruption)
}

// Scenario 6: a nonzero disk field in the EOCD is rejected outright.
func TestScenario6_MultiDiskRejected(t *testing.T) {
	a := New()
	_, err := a.AddData("x.txt", []byte("hi"), fixedModTime)
	require.NoError(t, err)
	raw := writeToBuf(t, a)

	eocdOff := bytes.LastIndex(raw, []byte{0x50, 0x4b, 0x05, 0x06})
	require.GreaterOrEqual(t, eocdOff, 0)
	corrupt := append([]byte(nil), raw...)
	corrupt[eocdOff+4] = 1 // ThisDisk

	_, err = OpenMemory(corrupt, ReadOnly)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDirectorySynthesisOrderAndFields(t *testing.T) {
	a := New()
	_, err := a.AddData("a/b/c.txt", []byte("x"), fixedModTime)
	require.NoError(t, err)

	entries := a.GetEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a/", "a/b/", "a/b/c.txt"}, []string{entries[0].Name(), entries[1].Name(), entries[2].Name()})

	for _, dir := range entries[:2] {
		assert.True(t, dir.IsDirectory())
		assert.Equal(t, uint32(0), dir.UncompressedSize())
		assert.Equal(t, uint32(0), dir.CRC32())
		assert.Equal(t, Store, dir.CompressionMethod())
	}
}

func TestAbsolutePathRejectedWithoutMutation(t *testing.T) {
	a := New()
	before := a.GetNumberOfEntries()

	_, err := a.AddData("/etc/passwd", []byte("nope"), fixedModTime)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, before, a.GetNumberOfEntries())
}

func TestUnsupportedCompressionMethodRejected(t *testing.T) {
	a := New()
	entry, err := a.AddData("x.txt", []byte("hello"), fixedModTime)
	require.NoError(t, err)
	entry.lfh.CompressionMethod = 99

	var out bytes.Buffer
	_, err = entry.ReadContent(&out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEOCDLocatorAcceptsCommentLengths(t *testing.T) {
	for _, n := range []int{0, 1, 21, 65535} {
		n := n
		t.Run("", func(t *testing.T) {
			a := New()
			require.NoError(t, a.SetComment(string(make([]byte, n))))
			raw := writeToBuf(t, a)

			reopened, err := OpenMemory(raw, ReadOnly)
			require.NoError(t, err)
			defer reopened.Close()
			assert.Len(t, reopened.GetComment(), n)
		})
	}
}

func TestRoundTripPreservesMetadata(t *testing.T) {
	a := New()
	_, err := a.AddData("one.txt", []byte("111"), fixedModTime)
	require.NoError(t, err)
	_, err = a.AddData("two.bin", bytes.Repeat([]byte{0xAB}, 50), fixedModTime)
	require.NoError(t, err)
	require.NoError(t, a.SetComment("archive comment"))

	raw := writeToBuf(t, a)
	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	want := a.GetEntries()
	got := reopened.GetEntries()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name(), got[i].Name())
		assert.Equal(t, want[i].UncompressedSize(), got[i].UncompressedSize())
		assert.Equal(t, want[i].CompressedSize(), got[i].CompressedSize())
		assert.Equal(t, want[i].CRC32(), got[i].CRC32())
		assert.Equal(t, want[i].CompressionMethod(), got[i].CompressionMethod())
	}
	assert.Equal(t, a.GetComment(), reopened.GetComment())
}

// Idempotence of serialize: writing, reparsing, and writing again produces
// byte-identical output given a deterministic modTime.
func TestIdempotenceOfSerialize(t *testing.T) {
	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)
	first := writeToBuf(t, a)

	reopened, err := OpenMemory(first, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()
	second := writeToBuf(t, reopened)

	assert.Equal(t, first, second)
}

func TestReadOnlyRejectsAddData(t *testing.T) {
	a := New()
	_, err := a.AddData("x.txt", []byte("hi"), fixedModTime)
	require.NoError(t, err)
	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.AddData("y.txt", []byte("hi"), fixedModTime)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestOpenMemoryRejectsWriteMode(t *testing.T) {
	_, err := OpenMemory([]byte{}, Write)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestUnsupportedStubsDoNotMutate(t *testing.T) {
	a := New()
	before := a.GetNumberOfEntries()

	assert.ErrorIs(t, a.RenameEntry("a", "b"), ErrUnsupported)
	assert.ErrorIs(t, a.AddFile("a", "/tmp/a"), ErrUnsupported)
	assert.ErrorIs(t, a.AddEntry("a"), ErrUnsupported)
	assert.Equal(t, before, a.GetNumberOfEntries())
}

func TestIsEncryptedAlwaysFalse(t *testing.T) {
	a := New()
	assert.False(t, a.IsEncrypted())
}

func TestBuildReaderAtMatchesWriteArchive(t *testing.T) {
	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)

	viaWriter := writeToBuf(t, a)

	b := New()
	_, err = b.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)
	ra, err := b.BuildReaderAt()
	require.NoError(t, err)

	viaReaderAt := make([]byte, ra.Size())
	_, err = ra.ReadAt(viaReaderAt, 0)
	require.NoError(t, err)

	assert.Equal(t, viaWriter, viaReaderAt)
}

func TestFingerprintStableAcrossReopen(t *testing.T) {
	a := New()
	_, err := a.AddData("foobar/test.txt", []byte("TestData"), fixedModTime)
	require.NoError(t, err)
	raw := writeToBuf(t, a)

	reopened, err := OpenMemory(raw, ReadOnly)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, a.Fingerprint(), reopened.Fingerprint())
}
