package probe

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xffff},
		{"single zero word", []byte{0x00, 0x00}, 0xffff},
		{"known word", []byte{0x45, 0x00}, ^uint16(0x4500)},
		{"odd trailing byte high padded", []byte{0x01}, ^uint16(0x0100)},
		{"carry folds", []byte{0xff, 0xff, 0x00, 0x01}, ^uint16(0x0001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.data))
		})
	}
}

func TestChecksumOfValidPacketIsZero(t *testing.T) {
	// recomputing the checksum over a packet containing its own correct
	// checksum yields zero, the classic verification identity
	packet := BuildEchoRequest(0x1234, 7, []byte("payload"))
	assert.Equal(t, uint16(0), Checksum(packet))
}

func TestBuildEchoRequestLayout(t *testing.T) {
	payload := []byte("netprobe echo")
	packet := BuildEchoRequest(0xbeef, 3, payload)

	require.Len(t, packet, 8+len(payload))
	assert.Equal(t, byte(8), packet[0], "type must be echo request")
	assert.Equal(t, byte(0), packet[1], "code must be zero")
	assert.Equal(t, uint16(0xbeef), binary.BigEndian.Uint16(packet[4:6]))
	assert.Equal(t, uint16(3), binary.BigEndian.Uint16(packet[6:8]))
	assert.Equal(t, payload, packet[8:])
	assert.NotZero(t, binary.BigEndian.Uint16(packet[2:4]))
}

func echoReply(id uint16) []byte {
	reply := make([]byte, 8)
	reply[0] = icmpEchoReply
	binary.BigEndian.PutUint16(reply[4:6], id)
	binary.BigEndian.PutUint16(reply[2:4], Checksum(reply))
	return reply
}

func TestMatchEchoReply(t *testing.T) {
	id := uint16(0x4242)

	t.Run("bare reply", func(t *testing.T) {
		assert.True(t, MatchEchoReply(echoReply(id), id))
	})

	t.Run("with ipv4 header", func(t *testing.T) {
		packet := append(make([]byte, ipv4HeaderLen), echoReply(id)...)
		assert.True(t, MatchEchoReply(packet, id))
	})

	t.Run("wrong identifier", func(t *testing.T) {
		assert.False(t, MatchEchoReply(echoReply(0x1111), id))
	})

	t.Run("echo request is not a reply", func(t *testing.T) {
		assert.False(t, MatchEchoReply(BuildEchoRequest(id, 1, nil), id))
	})

	t.Run("truncated", func(t *testing.T) {
		assert.False(t, MatchEchoReply([]byte{0, 0, 0}, id))
	})
}

func TestParsePingTime(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    float64
		wantHit bool
	}{
		{"linux", "64 bytes from 192.0.2.1: icmp_seq=1 ttl=57 time=12.3 ms", 12.3, true},
		{"windows sub-millisecond", "Reply from 192.0.2.1: bytes=32 time<1ms TTL=57", 1, true},
		{"german locale", "64 Bytes von 192.0.2.1: icmp_seq=1 ttl=57 Zeit=8.70 ms", 8.70, true},
		{"bare milliseconds", "round-trip min/avg/max = 11.1 ms", 11.1, true},
		{"no time at all", "Request timeout for icmp_seq 0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := ParsePingTime(tt.output)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestICMPProberReportsLastFailure(t *testing.T) {
	prober := &ICMPProber{Strategies: []PingStrategy{}}
	result := prober.Check(context.Background(), "example.com")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
