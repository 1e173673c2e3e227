/*
Package tokencodec generates, hashes, and prefixes ingestion tokens.

It is the lowest layer of the token lifecycle: pkg/registry calls Generate
once per create/rotate, stores only Hash(token) and DisplayPrefix(token), and never
persists the plaintext anywhere past the return value of the operation that
minted it.
*/
package tokencodec
