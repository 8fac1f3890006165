// Package netstream publishes completed frames on a best-effort ZeroMQ
// PUB channel for live-monitoring consumers. Each publish is a two-part
// message: a fixed topic frame followed by the serialized payload.
package netstream

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	"github.com/spectra-data/xrf.stream/internal/monitoring"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

// TopicCounts is the first message part of every publish. Subscribers
// filter on it; the payload mode (counts vs spectra) is a property of
// the stream, not the topic.
const TopicCounts = "XRF-Counts"

// DefaultEndpoint is the conventional live-feed bind address.
const DefaultEndpoint = "tcp://*:43434"

// PubSocket is the subset of zmq4.Socket the streamer uses. Tests
// substitute a fake through Config.SocketFactory.
type PubSocket interface {
	Listen(endpoint string) error
	Send(msg zmq4.Msg) error
	Close() error
}

// SocketFactory creates the PUB socket the streamer binds.
type SocketFactory func(ctx context.Context) PubSocket

func defaultSocketFactory(ctx context.Context) PubSocket {
	return zmq4.NewPub(ctx)
}

// Config contains configuration for the Streamer.
type Config struct {
	// Endpoint is the bind address, scheme://host:port
	// (default tcp://*:43434).
	Endpoint string

	// SendSpectra selects full-spectrum payloads instead of per-element
	// counts. The two modes are mutually exclusive.
	SendSpectra bool

	// Serializer encodes frames into payload buffers (default JSON).
	Serializer Serializer

	// SocketFactory overrides PUB socket creation (tests).
	SocketFactory SocketFactory
}

// Streamer binds one PUB socket for its lifetime and publishes completed
// frames on it. A send failure is logged and dropped, never surfaced:
// the live feed is best-effort and consumers tolerate gaps.
type Streamer struct {
	sock        PubSocket
	serializer  Serializer
	sendSpectra bool

	// sendMu keeps multipart sends mutually exclusive; interleaved
	// sends would corrupt the topic/payload framing.
	sendMu sync.Mutex

	closeOnce sync.Once
	closeErr  error

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewStreamer validates the endpoint, binds the PUB socket and returns a
// ready streamer. An unparseable endpoint or failed bind is a
// construction error; there is no runtime recovery from either.
func NewStreamer(config Config) (*Streamer, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	serializer := config.Serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = defaultSocketFactory
	}

	sock := factory(context.Background())
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("netstream: bind %s: %w", endpoint, err)
	}
	monitoring.Logf("[NetStreamer] Publishing on %s (spectra=%v)", endpoint, config.SendSpectra)

	return &Streamer{
		sock:        sock,
		serializer:  serializer,
		sendSpectra: config.SendSpectra,
	}, nil
}

// validateEndpoint checks scheme://host:port form. The host part may be
// the wildcard "*".
func validateEndpoint(endpoint string) error {
	scheme, rest, ok := strings.Cut(endpoint, "://")
	if !ok || rest == "" {
		return fmt.Errorf("netstream: endpoint %q: expected scheme://host:port", endpoint)
	}
	switch scheme {
	case "tcp":
		host, portStr, err := net.SplitHostPort(rest)
		if err != nil {
			return fmt.Errorf("netstream: endpoint %q: %w", endpoint, err)
		}
		if host == "" {
			return fmt.Errorf("netstream: endpoint %q: missing host", endpoint)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("netstream: endpoint %q: invalid port %q", endpoint, portStr)
		}
		return nil
	case "ipc", "inproc":
		return nil
	default:
		return fmt.Errorf("netstream: endpoint %q: unsupported scheme %q", endpoint, scheme)
	}
}

// Stream publishes one completed frame. It never returns an error to the
// caller; failures are logged and counted. Safe for concurrent callers.
func (s *Streamer) Stream(block *xrf.StreamBlock) {
	if block == nil {
		return
	}

	var payload []byte
	var err error
	if s.sendSpectra {
		payload, err = s.serializer.EncodeSpectra(block)
	} else {
		payload, err = s.serializer.EncodeCounts(block)
	}
	if err != nil {
		s.dropped.Add(1)
		monitoring.Logf("[NetStreamer] Failed to encode frame %s: %v", block.ID, err)
		return
	}

	s.sendMu.Lock()
	err = s.sock.Send(zmq4.NewMsgFrom([]byte(TopicCounts), payload))
	s.sendMu.Unlock()

	if err != nil {
		s.dropped.Add(1)
		monitoring.Logf("[NetStreamer] Failed to publish frame %s: %v", block.ID, err)
		return
	}
	s.sent.Add(1)
	monitoring.Debugf("[NetStreamer] Published frame %s (%d bytes)", block.ID, len(payload))
}

// Close releases the bound endpoint. Safe to call more than once; only
// the first call closes the socket.
func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.sock.Close()
	})
	return s.closeErr
}

// Stats is a snapshot of publish counters.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Stats returns the current counter snapshot.
func (s *Streamer) Stats() Stats {
	return Stats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
}
