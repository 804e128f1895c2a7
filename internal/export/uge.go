package export

import (
	"encoding/binary"
	"io"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/resolve"
)

// ugeVersion is the hUGETracker project format version this writer
// targets. A full v6 writer also emits routines, wave frames per
// instrument and order-table compression; this is the minimal subset a
// reader can round-trip a resolved ISM through (header, instrument
// table, one pattern per channel).
const ugeVersion = 6

// WriteUGE emits a minimal hUGETracker v6 project file for ism. Byte
// layout mirrors the teacher's cursor-based binary struct writes
// (little-endian fixed fields followed by length-prefixed blocks).
func WriteUGE(w io.Writer, ism *resolve.ISM, insts map[string]*dsl.Instrument) error {
	bw := &byteWriter{w: w}
	bw.writeUint32(ugeVersion)
	bw.writeString(ism.Metadata.Name, 32)
	bw.writeString(ism.Metadata.Artist, 32)
	bw.writeString(ism.Metadata.Description, 32)
	bw.writeUint8(uint8(clampToByte(ism.BPM)))

	names := instrumentOrder(insts)
	bw.writeUint32(uint32(len(names)))
	for _, name := range names {
		writeUGEInstrument(bw, name, insts[name])
	}

	bw.writeUint32(uint32(len(ism.Channels)))
	for _, ch := range ism.Channels {
		writeUGEChannel(bw, ch)
	}
	return bw.err
}

func instrumentOrder(insts map[string]*dsl.Instrument) []string {
	names := make([]string, 0, len(insts))
	for name := range insts {
		names = append(names, name)
	}
	return names
}

func writeUGEInstrument(bw *byteWriter, name string, inst *dsl.Instrument) {
	bw.writeString(name, 16)
	bw.writeString(inst.Type, 8)
	bw.writeUint8(uint8(clampToByte(int(inst.Duty))))
	if inst.Env != nil {
		bw.writeUint8(uint8(clampToByte(inst.Env.Initial)))
		bw.writeString(inst.Env.Direction, 8)
		bw.writeUint8(uint8(clampToByte(inst.Env.Period)))
	} else {
		bw.writeUint8(0)
		bw.writeString("none", 8)
		bw.writeUint8(0)
	}
}

func writeUGEChannel(bw *byteWriter, ch resolve.ChannelISM) {
	bw.writeUint32(uint32(ch.ID))
	bw.writeUint32(uint32(len(ch.Events)))
	for _, ev := range ch.Events {
		je := toJSONEvent(ev)
		bw.writeString(je.Kind, 8)
		bw.writeString(je.Token, 8)
		bw.writeUint32(uint32(je.Duration))
	}
}

func clampToByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// byteWriter accumulates the first write error so call sites don't need
// to check err after every field, matching the teacher's single
// end-of-function error check after a sequence of binary.Read calls.
type byteWriter struct {
	w   io.Writer
	err error
}

func (bw *byteWriter) writeUint8(v uint8) {
	bw.write([]byte{v})
}

func (bw *byteWriter) writeUint32(v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	bw.write(buf)
}

func (bw *byteWriter) writeString(s string, fixedLen int) {
	buf := make([]byte, fixedLen)
	copy(buf, s)
	bw.write(buf)
}

func (bw *byteWriter) write(p []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(p)
}
