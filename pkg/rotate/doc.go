// Package rotate provides generic business logic for rotating credentials. It
// provides methods for talking to rotation and storage client plugins. It will
// go through the configured list of secrets, load the value currently in use
// from the primary storage, ask the associated rotation client the last time
// that secret was rotated and the storage clients the last time the secret had
// been stored, apply the rotation policy to determine whether the secret needs
// to be rotated, ask the rotation client to mint a new secret, store the new
// values using each of the configured storage clients, and finally ask the
// rotation client to retire the secret it replaced.
//
// The steps are strictly sequential. A failure at any step stops the rotation
// of that secret. Nothing is undone: a newly minted secret that could not be
// stored is left in place on the server, and an old secret that could not be
// retired stays active until the disable process removes it.
package rotate
