package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/receiver/config"
)

const (
	DefaultPacketBits = 256

	headerSize  = 3
	queueLength = 64
)

// Packet is one datagram worth of bits from a channel.
type Packet struct {
	Channel byte
	Bits    []byte
}

// Marshal lays the packet out as the channel id, the big endian bit count and
// the bits packed MSB first.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, headerSize+(len(p.Bits)+7)/8)
	buf[0] = p.Channel
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(p.Bits)))
	for i, b := range p.Bits {
		if b != 0 {
			buf[headerSize+i/8] |= 0x80 >> (i % 8)
		}
	}
	return buf
}

func UnmarshalPacket(buf []byte) (*Packet, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("short packet: %d bytes", len(buf))
	}
	n := int(binary.BigEndian.Uint16(buf[1:3]))
	if len(buf) < headerSize+(n+7)/8 {
		return nil, fmt.Errorf("packet claims %d bits in %d bytes", n, len(buf)-headerSize)
	}
	p := &Packet{Channel: buf[0], Bits: make([]byte, n)}
	for i := range p.Bits {
		p.Bits[i] = (buf[headerSize+i/8] >> (7 - i%8)) & 1
	}
	return p, nil
}

// UDPOutput groups the bits of each channel into packets and sends every
// packet to all destinations. Channels never block on the network: when the
// send queue is full the packet is dropped and counted. On shutdown the
// queue is drained and each channel's partial packet is sent short.
type UDPOutput struct {
	dests      []config.OutputDestination
	packetBits int
	queue      chan *Packet
	metrics    api.WriteAPI
	logger     zerolog.Logger

	mu       sync.Mutex
	channels map[string]byte
	chans    []*udpChannel
	dropped  int
}

func NewUDPOutput(dests []config.OutputDestination, packetBits int, metrics api.WriteAPI) *UDPOutput {
	if packetBits <= 0 {
		packetBits = DefaultPacketBits
	}
	return &UDPOutput{
		dests:      dests,
		packetBits: packetBits,
		queue:      make(chan *Packet, queueLength),
		metrics:    metrics,
		logger:     log.Logger,
		channels:   make(map[string]byte),
	}
}

func (u *UDPOutput) SetLogger(logger zerolog.Logger) {
	u.logger = logger
}

// Dropped is the number of packets lost to a full queue.
func (u *UDPOutput) Dropped() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dropped
}

type udpChannel struct {
	u  *UDPOutput
	id byte

	mu  sync.Mutex
	buf []byte
}

func (c *udpChannel) Receive(bits []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(bits) > 0 {
		n := c.u.packetBits - len(c.buf)
		if n > len(bits) {
			n = len(bits)
		}
		c.buf = append(c.buf, bits[:n]...)
		bits = bits[n:]

		if len(c.buf) == c.u.packetBits {
			c.u.enqueue(&Packet{Channel: c.id, Bits: c.buf})
			c.buf = make([]byte, 0, c.u.packetBits)
		}
	}
	return nil
}

// flush takes whatever bits have not yet filled a packet.
func (c *udpChannel) flush() *Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return nil
	}
	p := &Packet{Channel: c.id, Bits: c.buf}
	c.buf = make([]byte, 0, c.u.packetBits)
	return p
}

// Channel assigns ids in the order channels are added.
func (u *UDPOutput) Channel(name string) (stream.Receiver[byte], error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.channels[name]; ok {
		return nil, fmt.Errorf("channel %s already added", name)
	}
	if len(u.channels) >= 256 {
		return nil, fmt.Errorf("too many channels")
	}
	id := byte(len(u.channels))
	u.channels[name] = id
	c := &udpChannel{u: u, id: id, buf: make([]byte, 0, u.packetBits)}
	u.chans = append(u.chans, c)
	return c, nil
}

func (u *UDPOutput) enqueue(p *Packet) {
	select {
	case u.queue <- p:
	default:
		u.mu.Lock()
		u.dropped++
		u.mu.Unlock()
		u.logger.Warn().Int("channel", int(p.Channel)).Msg("udp output queue full, dropping packet")
	}
}

func (u *UDPOutput) resolve() ([]*net.UDPAddr, error) {
	destAddrs := make([]*net.UDPAddr, 0, len(u.dests))
	for _, dest := range u.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		u.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("udp output starting")
	}
	return destAddrs, nil
}

func (u *UDPOutput) Start(ctx context.Context) error {
	destAddrs, err := u.resolve()
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	send := func(p *Packet) {
		encoded := p.Marshal()
		for _, dest := range destAddrs {
			if _, err := conn.WriteToUDP(encoded, dest); err != nil {
				u.logger.Warn().Err(err).IPAddr("dest_ip", dest.IP).Msg("error sending packet")
				continue
			}
		}
		u.metrics.WritePoint(influxdb2.NewPoint("aisrx.output.sent_packet",
			map[string]string{"channel": fmt.Sprint(p.Channel)},
			map[string]interface{}{"bits": len(p.Bits), "bytes": len(encoded)},
			time.Now()))
	}

	for {
		select {
		case <-ctx.Done():
			u.drain(send)
			return ctx.Err()
		case p := <-u.queue:
			send(p)
		}
	}
}

// drain sends the packets still queued, then the partial packet of every
// channel. Start is the only consumer of the queue, so the receive below
// never blocks.
func (u *UDPOutput) drain(send func(*Packet)) {
	for len(u.queue) > 0 {
		send(<-u.queue)
	}

	u.mu.Lock()
	chans := append([]*udpChannel(nil), u.chans...)
	u.mu.Unlock()

	var flushed int
	for _, c := range chans {
		if p := c.flush(); p != nil {
			send(p)
			flushed++
		}
	}
	u.logger.Debug().Int("partial_packets", flushed).Msg("udp output drained")
}
