// Package auth provides authentication and authorization for repo-relay.
//
// # Request Authentication Gate
//
// Every inbound HTTP request passes the gate middleware before reaching a
// handler. Non-exempt requests must carry three headers:
//
//   - X-API-Key: the shared credential
//   - X-Timestamp: Unix seconds, within the freshness window of server time
//   - X-Signature: hex HMAC-SHA256 over the raw body bytes followed by the
//     timestamp string, keyed with the credential
//
// Missing headers or a stale timestamp reject with 401; a wrong key or
// signature rejects with 403. Operator tooling may instead present
// "Authorization: Bearer <jwt>" signed HS256 with the credential.
//
// # User Directory & Invitation Ledger
//
// Chat-level authorization is separate from transport authentication.
// The Directory tracks which chat identities may issue commands and which
// are admins, and manages single-use invitation tokens so an admin can
// onboard a new user without sharing the credential. Membership is
// durable in the store; admins are always a subset of authorized users.
//
// # Payload confidentiality
//
// EncryptResponse and DecryptRequest wrap the payload codec for the
// {"encrypted_data": ...} body convention. DecryptRequest degrades to an
// empty payload on garbled input; it never fails the transport path.
package auth
