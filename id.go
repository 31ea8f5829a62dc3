package minusx

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewCallID generates a tool-call identifier ("mxgen_" + 24 hex chars).
// Task unique ids and run ids share this format so that client-issued and
// server-issued ids never collide with upstream LLM tool-call ids.
func NewCallID() string {
	return "mxgen_" + randomHex(12)
}

// NewStreamID generates a streaming-response identifier ("call_" + 24 hex chars).
// One is minted per LLM call and threads through content callbacks so the
// client can attribute chunks to a specific completion.
func NewStreamID() string {
	return "call_" + randomHex(12)
}

// NewErrorID generates an opaque correlation id for error responses.
func NewErrorID() string {
	return uuid.NewString()
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("minusx: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(b)
}
