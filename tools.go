//go:build tools

package tools

// Mocks in pkg/*/mocks are generated by mockery v3, used as an installed
// binary. Run: mockery (from the module root, reads .mockery.yaml).
