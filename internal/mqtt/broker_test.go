package mqtt

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

const (
	packetConnect = 1
	packetPublish = 3
)

// frame is a decoded MQTT v5 packet seen by the fake broker. Only the
// fields the tests look at are decoded.
type frame struct {
	typ      byte
	clientID string
	topic    string
	payload  []byte
}

// connectToFakeBroker returns a client whose dialer hands it one end of
// an in-memory pipe. The other end answers CONNECT with a CONNACK
// carrying reasonCode and then reports every packet it reads.
func connectToFakeBroker(t *testing.T, reasonCode byte) (*Client, <-chan frame, net.Conn) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		clientSide.Close()
		serverSide.Close()
	})

	frames := make(chan frame, 16)
	go func() {
		defer close(frames)
		r := bufio.NewReader(serverSide)
		first := true
		for {
			f, err := readFrame(r)
			if err != nil {
				return
			}
			frames <- f
			if first && f.typ == packetConnect {
				first = false
				if _, err := serverSide.Write([]byte{0x20, 0x03, 0x00, reasonCode, 0x00}); err != nil {
					return
				}
				if reasonCode >= 0x80 {
					return
				}
			}
		}
	}()

	c := New(Config{KeepAlive: 30, Timeout: 2 * time.Second, PollWait: 10 * time.Millisecond}, discardLogger())
	c.SetEndpoint("broker.test", 1883)
	c.SetDialer(func(_ context.Context, _, _ string) (net.Conn, error) {
		return clientSide, nil
	})
	return c, frames, serverSide
}

func nextFrame(t *testing.T, frames <-chan frame) frame {
	t.Helper()
	select {
	case f, ok := <-frames:
		if !ok {
			t.Fatal("fake broker closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a packet")
	}
	return frame{}
}

func readFrame(r *bufio.Reader) (frame, error) {
	header, err := r.ReadByte()
	if err != nil {
		return frame{}, err
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return frame{}, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}

	f := frame{typ: header >> 4}
	switch f.typ {
	case packetConnect:
		// Protocol name, level, flags, keepalive.
		body, err = skip(body, 2+4+1+1+2)
		if err == nil {
			body, err = skipProperties(body)
		}
		if err == nil {
			f.clientID, _, err = readString(body)
		}
	case packetPublish:
		var rest []byte
		f.topic, rest, err = readString(body)
		if err == nil && (header>>1)&0x03 > 0 {
			rest, err = skip(rest, 2)
		}
		if err == nil {
			rest, err = skipProperties(rest)
		}
		f.payload = rest
	}
	return f, err
}

var errShort = errors.New("short packet")

func skip(b []byte, n int) ([]byte, error) {
	if len(b) < n {
		return nil, errShort
	}
	return b[n:], nil
}

// skipProperties drops a v5 property block. The property length is an
// MQTT variable byte integer, which has the same encoding as a uvarint.
func skipProperties(b []byte) ([]byte, error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, errShort
	}
	return skip(b[k:], int(n))
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errShort
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return "", nil, errShort
	}
	return string(b[2 : 2+n]), b[2+n:], nil
}
