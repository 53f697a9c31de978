package uid

import (
	"encoding/base64"

	uuid "github.com/satori/go.uuid"
)

// NewID return a short url-safe id built from a random uuid
func NewID() string {
	id := uuid.NewV4()
	return base64.RawURLEncoding.EncodeToString(id.Bytes()[:9])
}

// NewRequestID returns the canonical form of a random uuid
func NewRequestID() string {
	return uuid.NewV4().String()
}
