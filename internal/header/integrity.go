package header

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
)

// Hash returns SHA-256 of the raw header bytes.
func Hash(raw []byte) []byte {
	sum := sha256.Sum256(raw)
	return sum[:]
}

// VerifyHash compares the Gen3 header hash recorded in the XML document
// with the hash of the raw header. An empty recorded hash is accepted.
func VerifyHash(raw, recorded []byte) error {
	if len(recorded) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare(Hash(raw), recorded) != 1 {
		return ErrHeaderHashMismatch
	}
	return nil
}

// Trailer returns the 64 bytes that follow a Gen4 header:
// SHA-256(raw) ‖ HMAC-SHA256(raw).
func Trailer(raw, hmacBaseKey []byte) []byte {
	return append(Hash(raw), crypto.HeaderHMAC(hmacBaseKey, raw)...)
}

// ReadTrailer reads the Gen4 SHA-256 and HMAC that follow the header and
// checks the SHA-256 right away. The HMAC needs the derived key and is
// checked later with [VerifyHMAC].
func ReadTrailer(r io.Reader, raw []byte) (mac []byte, err error) {
	rr := &reader{r: r}
	sum := make([]byte, HashSize)
	mac = make([]byte, HashSize)
	rr.readFull(sum)
	rr.readFull(mac)
	if rr.err != nil {
		return nil, rr.truncated()
	}

	if subtle.ConstantTimeCompare(Hash(raw), sum) != 1 {
		return nil, ErrHeaderSHAMismatch
	}
	return mac, nil
}

// VerifyHMAC checks the Gen4 header HMAC.
func VerifyHMAC(raw, mac, hmacBaseKey []byte) error {
	if !hmac.Equal(crypto.HeaderHMAC(hmacBaseKey, raw), mac) {
		return ErrHeaderHMACMismatch
	}
	return nil
}
