// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/salsa20/salsa"
)

// StreamID identifies the inner random stream that masks protected values
// inside the XML document.
type StreamID uint32

const (
	StreamNone     StreamID = 0
	StreamArcFour  StreamID = 1
	StreamSalsa20  StreamID = 2
	StreamChaCha20 StreamID = 3
)

func (s StreamID) String() string {
	switch s {
	case StreamNone:
		return "none"
	case StreamArcFour:
		return "arcfour"
	case StreamSalsa20:
		return "salsa20"
	case StreamChaCha20:
		return "chacha20"
	default:
		return fmt.Sprintf("StreamID(%d)", uint32(s))
	}
}

var salsa20IV = [8]byte{0xE8, 0x30, 0x09, 0x4B, 0x97, 0x20, 0x5D, 0x2A}

// RandomStream is a keystream consumed in document order: every protected
// value is XOR-ed with the next bytes of the stream. It is not safe for
// concurrent use.
type RandomStream struct {
	id StreamID

	chacha *chacha20.Cipher

	salsaKey     [32]byte
	salsaCounter [16]byte
	salsaBlock   [64]byte
	salsaPos     int
}

// NewRandomStream initializes the stream selected by id with key.
func NewRandomStream(id StreamID, key []byte) (*RandomStream, error) {
	s := &RandomStream{id: id}

	switch id {
	case StreamNone:
	case StreamSalsa20:
		s.salsaKey = sha256.Sum256(key)
		copy(s.salsaCounter[:8], salsa20IV[:])
		s.salsaPos = len(s.salsaBlock)
	case StreamChaCha20:
		sum := sha512.Sum512(key)
		c, err := chacha20.NewUnauthenticatedCipher(sum[:32], sum[32:32+chacha20.NonceSize])
		if err != nil {
			return nil, err
		}
		s.chacha = c
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStream, id)
	}

	return s, nil
}

// ID returns the stream identifier.
func (s *RandomStream) ID() StreamID {
	return s.id
}

// XOR masks or unmasks data in place and returns it.
func (s *RandomStream) XOR(data []byte) []byte {
	switch s.id {
	case StreamSalsa20:
		for i := range data {
			if s.salsaPos == len(s.salsaBlock) {
				s.nextSalsaBlock()
			}
			data[i] ^= s.salsaBlock[s.salsaPos]
			s.salsaPos++
		}
	case StreamChaCha20:
		s.chacha.XORKeyStream(data, data)
	}
	return data
}

func (s *RandomStream) nextSalsaBlock() {
	var zero [64]byte
	salsa.XORKeyStream(s.salsaBlock[:], zero[:], &s.salsaCounter, &s.salsaKey)
	ctr := binary.LittleEndian.Uint64(s.salsaCounter[8:])
	binary.LittleEndian.PutUint64(s.salsaCounter[8:], ctr+1)
	s.salsaPos = 0
}
