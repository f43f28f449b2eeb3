package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"golang.org/x/text/encoding/unicode"
)

var ErrEmptyImage = errors.New("image update has no payload")

// ImageUpdate is one encoded screen, region or cursor image, immutable
// once constructed. For cursor images X/Y carry the hotspot instead of a
// screen position.
type ImageUpdate struct {
	Seq        uint32
	X, Y       int
	W, H       int
	Format     ImageFormat
	Quality    Quality
	Fullscreen bool
	Data       []byte
}

// FrameWriter serializes outbound messages onto the updates pipe. Every
// message is written as a single blocking Write so frames never interleave;
// the mutex covers the one case of two producers (the display thread and
// the command loop emitting a notification) sharing the pipe.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter wraps the updates-pipe stream.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteImage frames and writes one image update:
//
//	[u32 totalLen = len(data)+36][u32 tag=0][u32 idx]
//	[u32 x][u32 y][u32 w][u32 h][u32 format][u32 quality][u32 fullscreen]
//	[data]
//
// All integers little-endian. A failed write is fatal to the producer side.
func (fw *FrameWriter) WriteImage(img *ImageUpdate) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}

	var header [LengthHeaderSize + ImageMetaSize]byte
	le := binary.LittleEndian
	le.PutUint32(header[0:4], uint32(len(img.Data)+ImageMetaSize))
	le.PutUint32(header[4:8], ImageTag)
	le.PutUint32(header[8:12], img.Seq)
	le.PutUint32(header[12:16], uint32(img.X))
	le.PutUint32(header[16:20], uint32(img.Y))
	le.PutUint32(header[20:24], uint32(img.W))
	le.PutUint32(header[24:28], uint32(img.H))
	le.PutUint32(header[28:32], uint32(img.Format))
	le.PutUint32(header[32:36], uint32(img.Quality))
	if img.Fullscreen {
		le.PutUint32(header[36:40], 1)
	}

	buf := make([]byte, 0, len(header)+len(img.Data))
	buf = append(buf, header[:]...)
	buf = append(buf, img.Data...)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(buf)
	return err
}

// WriteText frames and writes one text message: [u32 byteLen][UTF-16LE
// bytes], no metadata block. Used for clipboard echo, print-job notices and
// reload signals. Empty messages are dropped.
func (fw *FrameWriter) WriteText(msg string) error {
	if msg == "" {
		return nil
	}

	utf16Bytes, err := EncodeUTF16(msg)
	if err != nil {
		return err
	}

	buf := make([]byte, LengthHeaderSize, LengthHeaderSize+len(utf16Bytes))
	binary.LittleEndian.PutUint32(buf[:LengthHeaderSize], uint32(len(utf16Bytes)))
	buf = append(buf, utf16Bytes...)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err = fw.w.Write(buf)
	return err
}

var (
	utf16Encoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// EncodeUTF16 converts UTF-8 text to UTF-16LE bytes, no BOM.
func EncodeUTF16(s string) ([]byte, error) {
	return utf16Encoder.NewEncoder().Bytes([]byte(s))
}

// DecodeUTF16 converts UTF-16LE bytes back to UTF-8 text.
func DecodeUTF16(b []byte) (string, error) {
	out, err := utf16Encoder.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
