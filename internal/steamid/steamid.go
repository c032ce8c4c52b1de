// Package steamid validates 64-bit Steam account identifiers and derives the
// short forms Steam shows to users.
package steamid

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var ErrInvalidSteamID = errors.New("invalid steam id")

const (
	// Length is the number of decimal digits in a SteamID64.
	Length = 17

	accountIDMask  = 0xFFFFFFFF
	friendSalt     = 0x4353474F00000000
	friendAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Validate reports whether id is exactly 17 ASCII digits.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("%w: %q", ErrInvalidSteamID, id)
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidSteamID, id)
		}
	}
	return nil
}

// Parse validates id and returns its numeric value.
func Parse(id string) (uint64, error) {
	if err := Validate(id); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSteamID, err)
	}
	return v, nil
}

// ToAccountID returns the low 32 bits of id, which name the userdata folder.
func ToAccountID(id string) (uint32, error) {
	v, err := Parse(id)
	if err != nil {
		return 0, err
	}
	return uint32(v & accountIDMask), nil
}

// ProfileURL is the public community page for id.
func ProfileURL(id string) string {
	return "https://steamcommunity.com/profiles/" + id
}

// FriendCode encodes id as the short code used by in-game friend search,
// shaped like "ABCDE-FGHJ".
func FriendCode(id string) (string, error) {
	steamID, err := Parse(id)
	if err != nil {
		return "", err
	}

	h := friendHash(steamID)
	var r uint64
	for i := 0; i < 8; i++ {
		idNibble := steamID & 0xF
		steamID >>= 4
		hashBit := uint64(h>>uint(i)) & 1

		a := r<<4 | idNibble
		r = (r>>28)<<32 | a
		r = (r>>31)<<32 | (a<<1 | hashBit)
	}

	val := bits.ReverseBytes64(r)
	var b strings.Builder
	for i := 0; i < 13; i++ {
		if i == 4 || i == 9 {
			b.WriteByte('-')
		}
		b.WriteByte(friendAlphabet[val&0x1F])
		val >>= 5
	}
	return strings.TrimPrefix(b.String(), "AAAA-"), nil
}

func friendHash(steamID uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], steamID&accountIDMask|friendSalt)
	sum := md5.Sum(buf[:])
	return binary.LittleEndian.Uint32(sum[:4])
}
