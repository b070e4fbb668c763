// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"fmt"
	"math"

	"beats/internal/beat"
)

/*
Beat packet layout (BigEndian), one packet per confirmed beat:

|<-- 4 Bytes -->|<-- 1 -->|<-- 4 Bytes -->|<------ 8 Bytes ------>|
+---------------+---------+---------------+-----------------------+
|   Sequence    |  Inst.  |  Chunk Index  |        Energy         |
|   (uint32)    | (uint8) |   (uint32)    |       (float64)       |
+---------------+---------+---------------+-----------------------+

Instrument is 0 bass, 1 clap, 2 hi-hat. Sequence numbers start at 1 and let
receivers spot lost packets.
*/

// PacketSize is the encoded size of one beat packet.
const PacketSize = 4 + 1 + 4 + 8

// Packet is one decoded beat packet.
type Packet struct {
	Sequence uint32
	Event    beat.BeatEvent
}

// Encode writes the packet into buf, which must hold PacketSize bytes.
func (p Packet) Encode(buf []byte) []byte {
	buf = buf[:PacketSize]
	binary.BigEndian.PutUint32(buf[0:4], p.Sequence)
	buf[4] = byte(p.Event.Instrument)
	binary.BigEndian.PutUint32(buf[5:9], uint32(p.Event.ChunkIndex))
	binary.BigEndian.PutUint64(buf[9:17], math.Float64bits(p.Event.Energy))
	return buf
}

// DecodePacket parses a beat packet.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) != PacketSize {
		return Packet{}, fmt.Errorf("beat packet is %d bytes, want %d", len(data), PacketSize)
	}
	inst := beat.Instrument(data[4])
	if _, err := inst.MarshalText(); err != nil {
		return Packet{}, err
	}
	return Packet{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
		Event: beat.BeatEvent{
			Instrument: inst,
			ChunkIndex: int(binary.BigEndian.Uint32(data[5:9])),
			Energy:     math.Float64frombits(binary.BigEndian.Uint64(data[9:17])),
		},
	}, nil
}
