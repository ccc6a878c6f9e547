package protocol

import (
	"math/rand"
	"strings"
)

// RoomCodeAlphabet leaves out I, O, 0 and 1, which read alike.
const RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the number of characters in a room code.
const RoomCodeLength = 4

// NewRoomCode draws a random room code.
func NewRoomCode(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < RoomCodeLength; i++ {
		b.WriteByte(RoomCodeAlphabet[rng.Intn(len(RoomCodeAlphabet))])
	}
	return b.String()
}

// NormalizeRoomCode upper-cases and trims a user-typed code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code has the right length and alphabet.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(RoomCodeAlphabet, r) {
			return false
		}
	}
	return true
}
