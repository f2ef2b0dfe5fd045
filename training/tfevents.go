package training

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// tensorflow.Event and tensorflow.Summary field numbers
const (
	eventWallTime    protowire.Number = 1
	eventStep        protowire.Number = 2
	eventFileVersion protowire.Number = 3
	eventSummary     protowire.Number = 5

	summaryValue protowire.Number = 1

	valueTag         protowire.Number = 1
	valueSimpleValue protowire.Number = 2
)

const fileVersion = "brain.Event:2"

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// EventWriter appends TFRecord-framed Event protos to an events.out.tfevents file
// that TensorBoard can read
type EventWriter struct {
	path string
	file *os.File
	buf  *bufio.Writer
}

// NewEventWriter creates dir if needed and opens a new event file in it
func NewEventWriter(dir string) (*EventWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("events.out.tfevents.%010d.%s", now.Unix(), host))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &EventWriter{path: path, file: f, buf: bufio.NewWriter(f)}
	if err := w.writeRecord(encodeEvent(wallTime(now), 0, fileVersion, nil)); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Path of the event file
func (w *EventWriter) Path() string {
	return w.path
}

// WriteScalar records value under tag at step
func (w *EventWriter) WriteScalar(tag string, step int64, value float64) error {
	return w.writeRecord(encodeEvent(wallTime(time.Now()), step, "", encodeScalarSummary(tag, value)))
}

// Flush pushes buffered records to the file
func (w *EventWriter) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the event file
func (w *EventWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *EventWriter) writeRecord(data []byte) error {
	return writeRecord(w.buf, data)
}

// writeRecord frames data as uint64 length, masked crc of length, data, masked crc of data
func writeRecord(out io.Writer, data []byte) error {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, maskedCRC(data))

	for _, b := range [][]byte{header, data, footer} {
		if _, err := out.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, crc32c)
	return ((c >> 15) | (c << 17)) + 0xa282ead8
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func encodeEvent(wallTime float64, step int64, version string, summary []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, eventWallTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(wallTime))
	if step != 0 {
		b = protowire.AppendTag(b, eventStep, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(step))
	}
	if version != "" {
		b = protowire.AppendTag(b, eventFileVersion, protowire.BytesType)
		b = protowire.AppendString(b, version)
	}
	if summary != nil {
		b = protowire.AppendTag(b, eventSummary, protowire.BytesType)
		b = protowire.AppendBytes(b, summary)
	}
	return b
}

func encodeScalarSummary(tag string, value float64) []byte {
	var v []byte
	v = protowire.AppendTag(v, valueTag, protowire.BytesType)
	v = protowire.AppendString(v, tag)
	v = protowire.AppendTag(v, valueSimpleValue, protowire.Fixed32Type)
	v = protowire.AppendFixed32(v, math.Float32bits(float32(value)))

	var s []byte
	s = protowire.AppendTag(s, summaryValue, protowire.BytesType)
	s = protowire.AppendBytes(s, v)
	return s
}
