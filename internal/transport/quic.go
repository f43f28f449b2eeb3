package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const alpnProtocol = "rdpipe-v1"

// QUICDialer carries the three channels of a session as streams of a
// single QUIC connection to a networked gateway. Each stream announces
// itself with a length-prefixed channel name so the gateway can bind it to
// the right session queue.
type QUICDialer struct {
	// Addr is the gateway's UDP address, host:port.
	Addr string

	// TLSConfig overrides the default client TLS config (self-signed
	// gateway certificates are accepted by default: possession of the
	// session ID is the credential, as with the socket-name transports).
	TLSConfig *tls.Config
}

// DialSession establishes the QUIC connection and opens the three channel
// streams. Any failure tears the connection down and aborts session start.
func (d *QUICDialer) DialSession(sessionID string) (*Pipes, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	addr, err := net.ResolveUDPAddr("udp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", d.Addr, err)
	}

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	tr := &quic.Transport{Conn: udpConn}

	tlsConf := d.TLSConfig
	if tlsConf == nil {
		tlsConf = &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS13,
		}
	} else {
		tlsConf = tlsConf.Clone()
	}
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{alpnProtocol}
	}

	quicConf := &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	}

	qconn, err := tr.Dial(ctx, addr, tlsConf, quicConf)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("QUIC dial: %w", err)
	}

	pipes := &Pipes{}
	for _, ch := range []struct {
		name string
		dst  *io.ReadWriteCloser
	}{
		{ChannelInputs, &pipes.Inputs},
		{ChannelUpdates, &pipes.Updates},
		{ChannelAudio, &pipes.Audio},
	} {
		stream, err := d.openChannel(ctx, qconn, sessionID, ch.name)
		if err != nil {
			pipes.CloseAll()
			qconn.CloseWithError(1, "channel open failed")
			tr.Close()
			return nil, err
		}
		*ch.dst = stream
	}

	return pipes, nil
}

func (d *QUICDialer) openChannel(ctx context.Context, qconn *quic.Conn, sessionID, channel string) (io.ReadWriteCloser, error) {
	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", channel, err)
	}

	// Announce the channel immediately: QUIC sends no STREAM frame until
	// the first write, and the gateway needs the name to bind the stream.
	name := PipeName(sessionID, channel)
	hdr := make([]byte, 0, 1+len(name))
	hdr = append(hdr, byte(len(name)))
	hdr = append(hdr, name...)
	if _, err := stream.Write(hdr); err != nil {
		stream.Close()
		return nil, fmt.Errorf("announce %s stream: %w", channel, err)
	}

	return &quicStream{Stream: stream}, nil
}

// quicStream makes Close release both directions, so a bridge-side
// teardown unblocks a parked read the same way the socket transports do.
type quicStream struct {
	*quic.Stream
}

func (s *quicStream) Close() error {
	s.Stream.CancelRead(0)
	return s.Stream.Close()
}
