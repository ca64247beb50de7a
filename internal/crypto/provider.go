package crypto

// KeyProvider returns the AES-256 key used for subscriber data encryption.
type KeyProvider interface {
	// GetKey returns the 32-byte AES-256 key.
	GetKey() ([]byte, error)
}
