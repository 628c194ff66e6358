package speech

import (
	"bytes"
	"context"
	"encoding/binary"
)

const (
	silenceSampleRate    = 44100
	silenceBitsPerSample = 16
)

// Silent renders a silent WAV as long as the narration would take. It backs
// dry runs when no synthesis credential is configured.
type Silent struct {
	wordsPerMinute float64
}

func NewSilent(wordsPerMinute float64) *Silent {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return &Silent{wordsPerMinute: wordsPerMinute}
}

func (s *Silent) Synthesize(_ context.Context, req Request) ([]byte, error) {
	text, err := Prepare(req)
	if err != nil {
		return nil, err
	}
	return silentWAV(EstimateDuration(text, s.wordsPerMinute).Seconds()), nil
}

// wavHeader is the canonical 44-byte header of a mono PCM file.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func silentWAV(seconds float64) []byte {
	const blockAlign = silenceBitsPerSample / 8
	dataSize := uint32(seconds*silenceSampleRate) * blockAlign

	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      1,
		SampleRate:    silenceSampleRate,
		ByteRate:      silenceSampleRate * blockAlign,
		BlockAlign:    blockAlign,
		BitsPerSample: silenceBitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}

	var buf bytes.Buffer
	buf.Grow(binary.Size(h) + int(dataSize))
	_ = binary.Write(&buf, binary.LittleEndian, h)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
