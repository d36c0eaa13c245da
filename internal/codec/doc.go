// Package codec provides authenticated symmetric encryption for payloads
// exchanged between the chat front-end and the relay server.
//
// Tokens are ChaCha20-Poly1305 sealed boxes with a random per-call nonce,
// encoded as URL-safe base64 for transport inside JSON bodies. Tampering
// or decryption under the wrong key is always detected and reported as
// ErrDecryptFailed; the codec never returns corrupted plaintext.
package codec
