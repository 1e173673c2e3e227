/*
Package security provides at-rest encryption for the control plane.

A tenant's ManagedConnection carries a database password that pkg/storage
persists to BoltDB and pkg/provisioner hands to the ClickHouse driver. Both
paths go through SecretsManager so the password is never written to disk
in the clear.

# Key derivation

The control plane is run with a single operator-supplied secret,
INGESTCP_ENCRYPTION_KEY. DeriveKey turns that string into a 32-byte AES-256
key via SHA-256, so every replica loading the same config value arrives at
the same key without a key-exchange step:

	key := security.DeriveKey(cfg.EncryptionKeySeed)
	sm, err := security.NewSecretsManager(key)

# Encryption

EncryptPassword / DecryptPassword wrap the lower-level EncryptSecret /
DecryptSecret pair, which use AES-256-GCM with a random 12-byte nonce
prepended to the ciphertext:

	Plaintext → AES-256-GCM (random nonce) → [nonce || ciphertext || tag]

GCM's authentication tag means any bit flip in stored ciphertext fails
decryption outright rather than silently returning garbage.

ManagedConnection.Password is marshaled with `json:"-"` precisely so that
only the encrypted form produced by EncryptPassword ever reaches the
storage layer; handlers that need the plaintext must call DecryptPassword
explicitly and are responsible for keeping it out of logs.
*/
package security
