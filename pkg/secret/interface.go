// Package secret defines some generic interfaces used to describe secrets in
// different contexts. There are two contexts:
//
// * Info
// * Storage
//
// The Info context is used to describe the secret for use with the rotation and
// disablement plugin clients. This will describe the account that owns the
// secret, such as the MTK Connect user holding an API key. There is only one
// Info context per secret.
//
// The Storage context is used to describe the secret for use with the storage
// plugin clients. This will describe where the secret lives for the workloads
// that use it, such as a cluster secret or a CI repository. There can be zero
// or more Storage contexts per secret.
package secret

import "errors"

// ErrKeyNotFound is returned by storages asked about a key they do not hold.
var ErrKeyNotFound = errors.New("secret key not found")

// Cache each secret context has an associated cache, which allows the plugin
// client to store any information that is expensive to calculate with the
// secret context.
type Cache interface {
	// CacheSet stores a value in the secret cache.
	CacheSet(any, any)

	// CacheGet retrieves a value from the secret cache. It returns the value
	// stored and a boolean value indicating whether any value was stored (that
	// way, a nil value can be stored).
	CacheGet(any) (any, bool)

	// CacheClear deletes a value from the secret cache.
	CacheClear(any)
}

// Storage describes the secret from the client side for use with the associated
// storage plugin client. It provides a Cache for storing data with the secret.
type Storage interface {
	Cache

	// Name describing where to store this secret.
	Name() string
}

// Info describes the secret for server side use with rotation or disablement
// plugin clients. It provides a Cache for storing data with the secret.
type Info interface {
	Cache

	// Name describing which secret account to rotate.
	Name() string
}
