// Package wavwriter streams stereo 16-bit PCM to an io.WriteSeeker as a
// standard WAVE file, patching the RIFF and data chunk sizes once the
// total sample count is known.
//
// See http://soundfile.sapp.org/doc/WaveFormat/ for the format this
// writer produces.
package wavwriter

import (
	"encoding/binary"
	"io"
)

const pcmFormat = 1

// Writer incrementally appends interleaved stereo samples to a WAVE file.
// Call Finish once all frames have been written to patch the header sizes.
type Writer struct {
	ws io.WriteSeeker
}

type waveFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// New writes the RIFF/WAVE/fmt header (with placeholder sizes) and returns
// a Writer ready to accept frames at the given sample rate.
func New(ws io.WriteSeeker, sampleRate int) (*Writer, error) {
	w := &Writer{ws: ws}

	if _, err := ws.Write([]byte("RIFF")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte("WAVE")); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("fmt ")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(16)); err != nil {
		return nil, err
	}
	format := waveFormat{
		AudioFormat:   pcmFormat,
		Channels:      2,
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
	}
	format.ByteRate = format.SampleRate * uint32(format.Channels) * uint32(format.BitsPerSample/8)
	format.BlockAlign = format.Channels * (format.BitsPerSample / 8)
	if err := binary.Write(ws, binary.LittleEndian, format); err != nil {
		return nil, err
	}

	if _, err := ws.Write([]byte("data")); err != nil {
		return nil, err
	}
	if err := binary.Write(ws, binary.LittleEndian, int32(0)); err != nil {
		return nil, err
	}

	return w, nil
}

// WriteFrame appends interleaved stereo 16-bit samples (L,R,L,R,...).
func (w *Writer) WriteFrame(interleaved []int16) error {
	return binary.Write(w.ws, binary.LittleEndian, interleaved)
}

// Finish patches the RIFF and data chunk sizes now that the total length is
// known, and returns the final file length.
func (w *Writer) Finish() (int64, error) {
	wlen, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(wlen-8)); err != nil {
		return 0, err
	}

	if _, err := w.ws.Seek(40, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w.ws, binary.LittleEndian, int32(wlen-44)); err != nil {
		return 0, err
	}

	return wlen, nil
}
