// Package testutil provides test helpers for regcat tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertEqualSlices, etc.)
//   - net.go: loopback listener helpers
//   - dbtest/: in-memory and file-backed catalog databases
package testutil
