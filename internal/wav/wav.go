// Package wav reads and writes the uncompressed PCM WAV container used for
// every audio artifact koko produces.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	formatPCM     = 1
	formatFloat   = 3
	bitsPerSample = 16
	headerSize    = 44

	// maxFmtSize bounds the fmt chunk; WAVE_FORMAT_EXTENSIBLE needs 40 bytes.
	maxFmtSize = 64
)

var (
	// ErrNotWAV is returned when the data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")

	// ErrUnsupported is returned for WAV variants koko cannot decode.
	ErrUnsupported = errors.New("unsupported WAV encoding")

	// ErrTruncated is returned when a chunk runs past the end of the data.
	ErrTruncated = errors.New("truncated WAV data")
)

// Header describes the format of a WAV stream.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int

	// Float reports IEEE float samples rather than integer PCM.
	Float bool
}

// Frames returns the number of sample frames in the data chunk.
func (h Header) Frames() int {
	frameSize := h.Channels * h.BitsPerSample / 8
	if frameSize == 0 {
		return 0
	}
	return h.DataSize / frameSize
}

// Duration returns the playing time of the data chunk.
func (h Header) Duration() time.Duration {
	if h.SampleRate == 0 {
		return 0
	}
	return time.Duration(h.Frames()) * time.Second / time.Duration(h.SampleRate)
}

// Encode writes interleaved float samples in [-1, 1] as a 16-bit PCM WAV.
// Samples outside the range are clipped.
func Encode(w io.Writer, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return fmt.Errorf("invalid channel count %d", channels)
	}

	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(samples) * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	// data chunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	var frame [2]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint16(frame[:], uint16(floatToInt16(s)))
		buf.Write(frame[:])
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadHeader parses the RIFF header and returns the format of the data chunk
// without decoding any samples.
func ReadHeader(r io.Reader) (Header, error) {
	h, _, err := parse(r, false)
	return h, err
}

// Decode parses a WAV stream into interleaved float samples in [-1, 1].
// 8, 16, 24 and 32-bit integer PCM and 32-bit float data are accepted.
func Decode(r io.Reader) ([]float32, Header, error) {
	h, data, err := parse(r, true)
	if err != nil {
		return nil, h, err
	}
	return toFloat(data, h), h, nil
}

func parse(r io.Reader, withData bool) (Header, []byte, error) {
	var h Header

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return h, nil, ErrNotWAV
	}

	var (
		format  uint16
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return h, nil, fmt.Errorf("%w: no data chunk", ErrTruncated)
			}
			return h, nil, err
		}
		id := string(chunk[0:4])
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 || size > maxFmtSize {
				return h, nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupported, size)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return h, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			h.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			// WAVE_FORMAT_EXTENSIBLE carries the real format in the sub-format GUID.
			if format == 0xFFFE && size >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			h.Float = format == formatFloat
			haveFmt = true

		case "data":
			if !haveFmt {
				return h, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupported)
			}
			if err := validate(format, h); err != nil {
				return h, nil, err
			}
			// The size field is only an upper bound: streaming encoders write
			// a placeholder such as 0xFFFFFFFF, so the size comes from what
			// is actually there.
			frameSize := h.Channels * h.BitsPerSample / 8
			limited := io.LimitReader(r, int64(size))
			if !withData {
				n, err := io.Copy(io.Discard, limited)
				if err != nil {
					return h, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
				}
				h.DataSize = int(n) - int(n)%frameSize
				return h, nil, nil
			}
			data, err := io.ReadAll(limited)
			if err != nil {
				return h, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			if len(data) == 0 && size > 0 {
				return h, nil, fmt.Errorf("%w: empty data chunk", ErrTruncated)
			}
			data = data[:len(data)-len(data)%frameSize]
			h.DataSize = len(data)
			return h, data, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return h, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
			}
		}
	}
}

func validate(format uint16, h Header) error {
	if h.Channels <= 0 || h.SampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupported, h.Channels, h.SampleRate)
	}
	switch {
	case format == formatPCM && (h.BitsPerSample == 8 || h.BitsPerSample == 16 || h.BitsPerSample == 24 || h.BitsPerSample == 32):
		return nil
	case format == formatFloat && h.BitsPerSample == 32:
		return nil
	default:
		return fmt.Errorf("%w: format %d with %d bits", ErrUnsupported, format, h.BitsPerSample)
	}
}

func toFloat(data []byte, h Header) []float32 {
	width := h.BitsPerSample / 8
	out := make([]float32, len(data)/width)
	for i := range out {
		b := data[i*width:]
		switch h.BitsPerSample {
		case 8:
			out[i] = (float32(b[0]) - 128) / 128
		case 16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			out[i] = float32(v) / 8388608
		case 32:
			bits := binary.LittleEndian.Uint32(b)
			if h.Float {
				out[i] = math.Float32frombits(bits)
			} else {
				out[i] = float32(float64(int32(bits)) / 2147483648)
			}
		}
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * 32767))
}
