package crypto

// Zero overwrites a byte slice in memory with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// WithLockedKey pins key for the duration of fn and wipes it afterwards.
// Failing to pin is not fatal; the key is still wiped.
func WithLockedKey(key []byte, fn func([]byte) error) error {
	locked := LockMemory(key) == nil
	defer func() {
		Zero(key)
		if locked {
			_ = UnlockMemory(key)
		}
	}()
	return fn(key)
}
