// Package domain defines the core domain models for Korrosync:
// users, per-document reading progress, and the error taxonomy
// shared by the storage and gatekeeping layers.
package domain
