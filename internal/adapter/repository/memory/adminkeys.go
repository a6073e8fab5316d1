package memory

import (
	"context"
	"crypto/subtle"
)

// AdminKeys is a fixed set of admin keys, used with STORAGE_DRIVER=memory.
type AdminKeys struct {
	keys []string
}

func NewAdminKeys(keys ...string) *AdminKeys {
	return &AdminKeys{keys: keys}
}

func (a *AdminKeys) IsValid(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
