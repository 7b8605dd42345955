package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/protocol"
)

// fakeConn implements wsConnection over in-memory queues, standing in
// for a real *websocket.Conn in session-pump tests.
type fakeConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	inboundI int
	outbound [][]byte
	closed   bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundI >= len(c.inbound) {
		return 0, nil, errors.New("no more messages")
	}
	msg := c.inbound[c.inboundI]
	c.inboundI++
	return 1, msg, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := append([]byte(nil), data...)
	c.outbound = append(c.outbound, cp)
	return nil
}

func (c *fakeConn) SetReadLimit(limit int64)           {}
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(h func(string) error) {}
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) outboundCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbound)
}

type fakeRouter struct {
	mu          sync.Mutex
	routed      []protocol.Envelope
	disconnects int
}

func (f *fakeRouter) Route(s *Session, env protocol.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed = append(f.routed, env)
}

func (f *fakeRouter) HandleDisconnect(s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func encodeEnvelope(t *testing.T, envelopeType string, payload interface{}) []byte {
	t.Helper()
	data, err := (protocol.JSONCodec{}).Encode(envelopeType, payload)
	require.NoError(t, err)
	return data
}

func TestReadPumpRoutesDecodedMessages(t *testing.T) {
	conn := &fakeConn{inbound: [][]byte{
		encodeEnvelope(t, protocol.TypePing, nil),
	}}
	router := &fakeRouter{}
	s := NewSession(conn, router, nil, time.Second)

	s.readPump(4096)

	router.mu.Lock()
	defer router.mu.Unlock()
	require.Len(t, router.routed, 1)
	require.Equal(t, protocol.TypePing, router.routed[0].Type)
	require.Equal(t, 1, router.disconnects)
}

func TestReadPumpSendsErrorOnMalformedPayload(t *testing.T) {
	conn := &fakeConn{inbound: [][]byte{[]byte("not json")}}
	router := &fakeRouter{}
	s := NewSession(conn, router, nil, time.Second)

	s.readPump(4096)

	require.Equal(t, 1, len(s.priorityCh))
	require.Equal(t, 0, conn.outboundCount())
}

func TestSendDropsOnFullChannelAndDisconnects(t *testing.T) {
	conn := &fakeConn{}
	router := &fakeRouter{}
	s := NewSession(conn, router, nil, time.Second)

	for i := 0; i < cap(s.sendCh)+5; i++ {
		s.send(protocol.TypeRoomUpdate, map[string]int{"i": i})
	}

	require.Equal(t, cap(s.sendCh), len(s.sendCh))
	router.mu.Lock()
	defer router.mu.Unlock()
	require.Equal(t, 1, router.disconnects)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.True(t, conn.closed)
}

func TestSendRoutesPriorityEnvelopesToPriorityChannel(t *testing.T) {
	conn := &fakeConn{}
	router := &fakeRouter{}
	s := NewSession(conn, router, nil, time.Second)

	s.send(protocol.TypeError, protocol.ErrorPayload{Code: "x", Message: "y"})

	require.Equal(t, 1, len(s.priorityCh))
	require.Equal(t, 0, len(s.sendCh))
}

func TestBindSetsRoomAndPlayer(t *testing.T) {
	conn := &fakeConn{}
	router := &fakeRouter{}
	s := NewSession(conn, router, nil, time.Second)

	s.Bind("ROOM1", "p1")

	require.Equal(t, "ROOM1", s.RoomCode)
	require.Equal(t, "p1", s.PlayerID)
}
