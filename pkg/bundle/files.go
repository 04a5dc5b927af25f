// Copyright 2025 Signia Protocol
//
// Bundle Files
// Atomic write and read of the three bundle documents. Writes go to
// temporary names and are renamed into place so a verifier can never
// observe a partial bundle.

package bundle

import (
	"os"
	"path/filepath"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// File names inside a bundle directory.
const (
	SchemaFile   = "schema.json"
	ManifestFile = "manifest.json"
	ProofFile    = "proof.json"
)

// Files holds the raw bytes of the three documents, as read from disk or
// received over the wire.
type Files struct {
	Schema   []byte
	Manifest []byte
	Proof    []byte
}

// Files returns the assembled bundle as raw document bytes.
func (b *Bundle) Files() Files {
	return Files{Schema: b.SchemaBytes, Manifest: b.ManifestBytes, Proof: b.ProofBytes}
}

// WriteDir writes the bundle into a directory atomically: each document is
// written under a temporary name, synced, and renamed into place.
func (b *Bundle) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fault.New(fault.Internal, "bundle directory cannot be created")
	}
	docs := []struct {
		name string
		data []byte
	}{
		{SchemaFile, b.SchemaBytes},
		{ManifestFile, b.ManifestBytes},
		{ProofFile, b.ProofBytes},
	}
	for _, doc := range docs {
		if err := writeAtomic(dir, doc.name, doc.data); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fault.New(fault.Internal, "bundle temp file cannot be created")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fault.New(fault.Internal, "bundle document cannot be written")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fault.New(fault.Internal, "bundle document cannot be synced")
	}
	if err := tmp.Close(); err != nil {
		return fault.New(fault.Internal, "bundle document cannot be closed")
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fault.New(fault.Internal, "bundle document cannot be renamed into place")
	}
	return nil
}

// ReadDir loads the three documents from a bundle directory.
func ReadDir(dir string) (Files, error) {
	var f Files
	var err error
	if f.Schema, err = os.ReadFile(filepath.Join(dir, SchemaFile)); err != nil {
		return f, fault.New(fault.BundleInvalidSchema, "schema.json is missing or unreadable")
	}
	if f.Manifest, err = os.ReadFile(filepath.Join(dir, ManifestFile)); err != nil {
		return f, fault.New(fault.BundleInvalidManifest, "manifest.json is missing or unreadable")
	}
	if f.Proof, err = os.ReadFile(filepath.Join(dir, ProofFile)); err != nil {
		return f, fault.New(fault.BundleInvalidProof, "proof.json is missing or unreadable")
	}
	return f, nil
}
