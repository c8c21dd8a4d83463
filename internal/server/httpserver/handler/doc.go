// Package handler implements the KOReader sync protocol endpoints:
// account registration and verification under /users, reading progress
// under /syncs, plus the health check and robots.txt.
package handler
