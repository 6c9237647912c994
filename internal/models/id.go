package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

func NewID(prefix string) string {
	t := time.Now()
	entropy := ulid.Monotonic(mrand.New(mrand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	return fmt.Sprintf("%s_%s", prefix, id.String())
}

// NewSecret returns a fresh signing secret: 32 bytes from crypto/rand,
// hex-encoded. The raw value is only ever shown once, at generation time.
func NewSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("models: crypto/rand unavailable: " + err.Error())
	}
	return fmt.Sprintf("whsec_%s", hex.EncodeToString(b))
}
