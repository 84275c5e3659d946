package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Format holds WAV file format information.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

var errNotWAV = errors.New("not a RIFF/WAVE file")

// ParseWAV returns the format and PCM payload of a WAV file. A data chunk
// shorter than its declared size is truncated to what is present.
func ParseWAV(data []byte) (*Format, []byte, error) {
	reader := bytes.NewReader(data)

	header := make([]byte, 12)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, nil, errNotWAV
	}

	var format *Format
	for {
		chunkID := make([]byte, 4)
		if _, err := io.ReadFull(reader, chunkID); err != nil {
			return nil, nil, fmt.Errorf("no data chunk: %w", err)
		}

		var chunkSize uint32
		if err := binary.Read(reader, binary.LittleEndian, &chunkSize); err != nil {
			return nil, nil, fmt.Errorf("read chunk size: %w", err)
		}

		switch string(chunkID) {
		case "fmt ":
			var fmtChunk struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(reader, binary.LittleEndian, &fmtChunk); err != nil {
				return nil, nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			format = &Format{
				SampleRate: int(fmtChunk.SampleRate),
				Channels:   int(fmtChunk.NumChannels),
				BitDepth:   int(fmtChunk.BitsPerSample),
			}
			// Skip any extra format bytes
			if extra := int64(chunkSize) - 16; extra > 0 {
				if _, err := reader.Seek(extra, io.SeekCurrent); err != nil {
					return nil, nil, err
				}
			}

		case "data":
			if format == nil {
				return nil, nil, errors.New("data chunk before fmt chunk")
			}
			size := int(chunkSize)
			if remaining := reader.Len(); size > remaining {
				size = remaining
			}
			pcm := make([]byte, size)
			if _, err := io.ReadFull(reader, pcm); err != nil {
				return nil, nil, fmt.Errorf("read data chunk: %w", err)
			}
			return format, pcm, nil

		default:
			if _, err := reader.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, nil, err
			}
		}
	}
}
