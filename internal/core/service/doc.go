// Package service provides the domain services for korrosync.
//
// Gate is the admission pipeline every authenticated request passes
// through: a per-client token bucket first, then argon2id credential
// verification against the stored user record. UserService and
// SyncService carry the account and reading-progress operations on top
// of the storage contract.
package service
