package h2c

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func newFramerMixin(w io.Writer, r io.Reader, maxHeaderListSize uint32) *framerMixin {
	wbuf := bufio.NewWriter(w)
	framer := http2.NewFramer(wbuf, r)
	framer.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	framer.MaxHeaderListSize = maxHeaderListSize
	m := &framerMixin{
		wbuf:   wbuf,
		Framer: framer,
	}
	m.hpEnc = hpack.NewEncoder(&m.hbuf)
	return m
}

// framerMixin serializes all frame writes. Every write is flushed right away,
// frames are small and only ever written in response to the peer.
type framerMixin struct {
	muWrite sync.Mutex
	wbuf    *bufio.Writer
	*http2.Framer

	// hpack state is only touched with muWrite held: header blocks must reach
	// the peer in the order they were encoded
	hbuf  bytes.Buffer
	hpEnc *hpack.Encoder
}

func (f *framerMixin) locked(write func() error) error {
	f.muWrite.Lock()
	defer f.muWrite.Unlock()
	if err := write(); err != nil {
		return err
	}
	return f.wbuf.Flush()
}

func (f *framerMixin) writeSettings(settings ...http2.Setting) error {
	return f.locked(func() error { return f.Framer.WriteSettings(settings...) })
}

func (f *framerMixin) writeSettingsAck() error {
	return f.locked(f.Framer.WriteSettingsAck)
}

func (f *framerMixin) writePing(ack bool, data [8]byte) error {
	return f.locked(func() error { return f.Framer.WritePing(ack, data) })
}

func (f *framerMixin) writeData(streamID uint32, endStream bool, data []byte) error {
	return f.locked(func() error { return f.Framer.WriteData(streamID, endStream, data) })
}

func (f *framerMixin) writeRSTStream(streamID uint32, code http2.ErrCode) error {
	return f.locked(func() error { return f.Framer.WriteRSTStream(streamID, code) })
}

func (f *framerMixin) writeGoAway(maxStreamID uint32, code http2.ErrCode, debugData []byte) error {
	return f.locked(func() error { return f.Framer.WriteGoAway(maxStreamID, code, debugData) })
}

func (f *framerMixin) writeWindowUpdate(streamID, incr uint32) error {
	return f.locked(func() error { return f.Framer.WriteWindowUpdate(streamID, incr) })
}

// writeHeaders encodes the header list and writes it as one HEADERS frame
// followed by as many CONTINUATION frames as maxFrameSize requires. No other
// frame can be interleaved.
// below code consults x/net/http2 func (cc *ClientConn) writeHeaders()
func (f *framerMixin) writeHeaders(streamID uint32, enumHeaders func(func(k, v string)), endStream bool, maxFrameSize uint32) error {
	return f.locked(func() error {
		f.hbuf.Reset()
		enumHeaders(func(name, value string) {
			f.hpEnc.WriteField(hpack.HeaderField{Name: name, Value: value})
		})
		data := f.hbuf.Bytes()

		first := true // first frame written (HEADERS is first, then CONTINUATION)
		for first || len(data) > 0 {
			var chunk []byte
			endHeaders := len(data) <= int(maxFrameSize)
			if !endHeaders {
				chunk, data = data[:maxFrameSize], data[maxFrameSize:]
			} else {
				chunk, data = data, nil
			}
			var err error
			if first {
				err = f.Framer.WriteHeaders(http2.HeadersFrameParam{
					StreamID:      streamID,
					BlockFragment: chunk,
					EndStream:     endStream,
					EndHeaders:    endHeaders,
				})
				first = false
			} else {
				err = f.Framer.WriteContinuation(streamID, endHeaders, chunk)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// setMaxDynamicTableSize follows the peer's SETTINGS_HEADER_TABLE_SIZE
func (f *framerMixin) setMaxDynamicTableSize(v uint32) {
	f.muWrite.Lock()
	f.hpEnc.SetMaxDynamicTableSizeLimit(v)
	f.muWrite.Unlock()
}
