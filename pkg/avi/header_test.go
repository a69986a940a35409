package avi

import (
	"encoding/binary"
	"math"
	"mjpegavi/pkg/sink"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	header, placeholders, err := Layout(Params{Width: 320, Height: 240, FrameRate: 30})
	require.NoError(t, err)

	expected := []byte{
		'R', 'I', 'F', 'F',
		0, 0, 0, 0, // Placeholder, riff size.
		'A', 'V', 'I', ' ',

		'L', 'I', 'S', 'T',
		0xd8, 0, 0, 0, // 216.
		'h', 'd', 'r', 'l',

		'a', 'v', 'i', 'h',
		0x38, 0, 0, 0, // 56.
		0x35, 0x82, 0, 0, // 33333 microseconds per frame.
		0, 0, 0, 0, // Max bytes per second.
		0, 0, 0, 0, // Padding granularity.
		0x10, 0, 0, 0, // Flags, has index.
		0, 0, 0, 0, // Placeholder, total frames.
		0, 0, 0, 0, // Initial frames.
		1, 0, 0, 0, // Streams.
		0, 0, 0, 0, // Placeholder, suggested buffer size.
		0x40, 0x01, 0, 0, // Width.
		0xf0, 0, 0, 0, // Height.
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // Reserved.

		'L', 'I', 'S', 'T',
		0x74, 0, 0, 0, // 116.
		's', 't', 'r', 'l',

		's', 't', 'r', 'h',
		0x38, 0, 0, 0, // 56.
		'v', 'i', 'd', 's',
		'M', 'J', 'P', 'G',
		0, 0, 0, 0, // Flags.
		0, 0, // Priority.
		0, 0, // Language.
		0, 0, 0, 0, // Initial frames.
		1, 0, 0, 0, // Scale.
		30, 0, 0, 0, // Rate.
		0, 0, 0, 0, // Start.
		0, 0, 0, 0, // Placeholder, length.
		0, 0, 0, 0, // Placeholder, suggested buffer size.
		0, 0, 0, 0, // Quality.
		0, 0, 0, 0, // Sample size.
		0, 0, 0, 0, 0x40, 0x01, 0xf0, 0, // Frame.

		's', 't', 'r', 'f',
		0x28, 0, 0, 0, // 40.
		0x28, 0, 0, 0, // Size.
		0x40, 0x01, 0, 0, // Width.
		0xf0, 0, 0, 0, // Height.
		1, 0, // Planes.
		24, 0, // Bit count.
		'M', 'J', 'P', 'G',
		0, 0x84, 0x03, 0, // Size image.
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,

		'L', 'I', 'S', 'T',
		0x10, 0, 0, 0, // 16.
		'o', 'd', 'm', 'l',
		'd', 'm', 'l', 'h',
		4, 0, 0, 0,
		0, 0, 0, 0, // Placeholder, total frames.

		'L', 'I', 'S', 'T',
		0, 0, 0, 0, // Placeholder, movi size.
		'm', 'o', 'v', 'i',
	}
	require.Equal(t, expected, header)
	require.Len(t, header, HeaderSize)
	require.Equal(t, "movi", string(header[MoviOffset:MoviOffset+4]))

	expectedPlaceholders := []Placeholder{
		{Offset: 4, Kind: KindRIFFSize},
		{Offset: 48, Kind: KindTotalFrames},
		{Offset: 60, Kind: KindMaxChunkSize},
		{Offset: 140, Kind: KindTotalFrames},
		{Offset: 144, Kind: KindMaxChunkSize},
		{Offset: 232, Kind: KindTotalFrames},
		{Offset: 240, Kind: KindMoviSize},
	}
	require.Equal(t, expectedPlaceholders, placeholders)
}

func TestLayoutInvalidParameters(t *testing.T) {
	maxRate := int64(MaxFrameRate)
	cases := map[string]Params{
		"rateOverflow":  {Width: 320, Height: 240, FrameRate: int(maxRate + 1)},
		"rateWraps":     {Width: 320, Height: 240, FrameRate: int(maxRate + 31)},
		"zeroWidth":     {Width: 0, Height: 240, FrameRate: 30},
		"negativeWidth": {Width: -1, Height: 240, FrameRate: 30},
		"zeroHeight":    {Width: 320, Height: 0, FrameRate: 30},
		"zeroRate":      {Width: 320, Height: 240, FrameRate: 0},
		"negativeRate":  {Width: 320, Height: 240, FrameRate: -30},
		"wideWidth":     {Width: MaxDimension + 1, Height: 240, FrameRate: 30},
		"tallHeight":    {Width: 320, Height: MaxDimension + 1, FrameRate: 30},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			header, placeholders, err := Layout(p)
			require.ErrorIs(t, err, ErrInvalidParameters)
			require.Nil(t, header)
			require.Nil(t, placeholders)
		})
	}
}

func TestNewWriterRateOverflow(t *testing.T) {
	ws := sink.NewCounting(&sink.WriterSeeker{})
	_, err := NewWriter(ws, Params{
		Width: 320, Height: 240, FrameRate: int(int64(MaxFrameRate) + 1),
	})
	require.ErrorIs(t, err, ErrInvalidParameters)
	require.Equal(t, 0, ws.Counts().Calls())
}

func TestLayoutLimits(t *testing.T) {
	le := binary.LittleEndian

	t.Run("maxRate", func(t *testing.T) {
		header, _, err := Layout(Params{
			Width: 320, Height: 240, FrameRate: int(int64(MaxFrameRate)),
		})
		require.NoError(t, err)
		// Microseconds per frame rounds down to zero.
		require.Equal(t, uint32(0), le.Uint32(header[32:]))
		require.Equal(t, uint32(math.MaxUint32), le.Uint32(header[132:]))
	})
	t.Run("maxDimension", func(t *testing.T) {
		header, _, err := Layout(Params{
			Width: MaxDimension, Height: 40000, FrameRate: 30,
		})
		require.NoError(t, err)
		require.Equal(t, uint32(MaxDimension), le.Uint32(header[64:]))
		require.Equal(t, uint32(40000), le.Uint32(header[68:]))
		// Frame rectangle does not fit signed shorts.
		require.Equal(t, uint16(0), le.Uint16(header[160:]))
		require.Equal(t, uint16(0), le.Uint16(header[162:]))
	})
	t.Run("maxRectCoord", func(t *testing.T) {
		header, _, err := Layout(Params{
			Width: math.MaxInt16, Height: math.MaxInt16 + 1, FrameRate: 30,
		})
		require.NoError(t, err)
		require.Equal(t, uint16(math.MaxInt16), le.Uint16(header[160:]))
		require.Equal(t, uint16(0), le.Uint16(header[162:]))
	})
}

func TestSizeImage(t *testing.T) {
	require.Equal(t, uint32(230400), sizeImage(320, 240))
	// Rows are padded to 4 bytes.
	require.Equal(t, uint32(12), sizeImage(3, 1))
	require.Equal(t, uint32(0), sizeImage(MaxDimension, MaxDimension))
}

func TestPlaceholderKindString(t *testing.T) {
	require.Equal(t, "riff size", KindRIFFSize.String())
	require.Equal(t, "max chunk size", KindMaxChunkSize.String())
	require.Equal(t, "PlaceholderKind(9)", PlaceholderKind(9).String())
}
