package kzg

import "testing"

// TestLoadCKZGTrustedSetupMissingFile checks the c-kzg-4844 backend's
// initialization plumbing surfaces a clear error when no trusted setup file
// is present, rather than panicking — this tree ships no embedded setup, so
// a real verification pass is exercised only in a deployment that supplies
// one via --kzg-trusted-setup.
func TestLoadCKZGTrustedSetupMissingFile(t *testing.T) {
	if err := LoadCKZGTrustedSetup("/nonexistent/trusted_setup.txt"); err == nil {
		t.Fatalf("expected an error loading a missing trusted setup file")
	}
}
