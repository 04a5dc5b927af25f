// Copyright 2025 Signia Protocol
//
// Input Normalizer Tests

package input

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

func expectCode(t *testing.T, err error, code fault.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := fault.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestFromDir_SortedTraversal(t *testing.T) {
	dir := t.TempDir()
	// Created out of order; traversal must still be sorted.
	for _, name := range []string{"z.txt", "a/b.txt", "a/a.txt", "m.txt"} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tree, err := FromDir(dir, DefaultPolicy())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := []string{"artifact:/a/a.txt", "artifact:/a/b.txt", "artifact:/m.txt", "artifact:/z.txt"}
	files := tree.Files()
	if len(files) != len(want) {
		t.Fatalf("file count mismatch: got %d, want %d", len(files), len(want))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, f.Path, want[i])
		}
	}
}

func TestFromDir_SymlinksDenied(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "real.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	_, err := FromDir(dir, DefaultPolicy())
	expectCode(t, err, fault.InputSymlinksDenied)
}

func TestFromDir_SymlinkResolveWithinRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "real.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	pol := DefaultPolicy()
	pol.Symlinks = SymlinksResolveRoot
	tree, err := FromDir(dir, pol)
	if err != nil {
		t.Fatalf("resolve-within-root failed: %v", err)
	}
	if _, ok := tree.Get("artifact:/link.txt"); !ok {
		t.Error("resolved symlink entry missing")
	}
}

func TestFromDir_SymlinkEscapesRoot(t *testing.T) {
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "leak.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	pol := DefaultPolicy()
	pol.Symlinks = SymlinksResolveRoot
	_, err := FromDir(dir, pol)
	expectCode(t, err, fault.InputArchiveTraversal)
}

func TestFromArchive_TarGz(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gz.Close()

	tree, err := FromArchive(buf.Bytes(), DefaultPolicy())
	if err != nil {
		t.Fatalf("archive ingest failed: %v", err)
	}
	files := tree.Files()
	if len(files) != 2 || files[0].Path != "artifact:/a.txt" || files[1].Path != "artifact:/b.txt" {
		t.Errorf("unexpected entries: %v", files)
	}
}

func TestFromArchive_Traversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	tw.Write([]byte("x"))
	tw.Close()

	_, err := FromArchive(buf.Bytes(), DefaultPolicy())
	expectCode(t, err, fault.InputArchiveTraversal)
}

func TestLimits(t *testing.T) {
	pol := DefaultPolicy()
	pol.MaxFiles = 1
	_, err := assemble([]rawEntry{{rel: "a", data: []byte("x")}, {rel: "b", data: []byte("y")}}, pol)
	expectCode(t, err, fault.LimitExceeded)
	if fault.As(err).Get("limit") != "max_files" {
		t.Errorf("wrong limit detail: %v", err)
	}

	pol = DefaultPolicy()
	pol.MaxDepth = 2
	_, err = assemble([]rawEntry{{rel: "a/b/c.txt", data: []byte("x")}}, pol)
	expectCode(t, err, fault.LimitExceeded)

	pol = DefaultPolicy()
	pol.MaxFileBytes = 2
	_, err = assemble([]rawEntry{{rel: "a.txt", data: []byte("xyz")}}, pol)
	expectCode(t, err, fault.InputTooLarge)

	pol = DefaultPolicy()
	pol.MaxTotalBytes = 3
	_, err = assemble([]rawEntry{
		{rel: "a.txt", data: []byte("xy")},
		{rel: "b.txt", data: []byte("zw")},
	}, pol)
	expectCode(t, err, fault.InputTooLarge)
}

func TestLimits_JustBelowSucceeds(t *testing.T) {
	pol := DefaultPolicy()
	pol.MaxFiles = 2
	pol.MaxFileBytes = 2
	pol.MaxTotalBytes = 4
	pol.MaxDepth = 2
	_, err := assemble([]rawEntry{
		{rel: "a/a.txt", data: []byte("xy")},
		{rel: "a/b.txt", data: []byte("zw")},
	}, pol)
	if err != nil {
		t.Fatalf("input within limits rejected: %v", err)
	}
}

func TestNormalizeText(t *testing.T) {
	out, err := NormalizeText([]byte("a\r\nb\rc\n"), DefaultPolicy())
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if string(out) != "a\nb\nc\n" {
		t.Errorf("newline normalization mismatch: %q", out)
	}

	_, err = NormalizeText([]byte{0xff, 0x00}, DefaultPolicy())
	expectCode(t, err, fault.InputEncodingInvalid)
}

func TestPolicy_PreserveForbidden(t *testing.T) {
	pol := DefaultPolicy()
	pol.Newline = NewlinePreserve
	expectCode(t, pol.Validate(), fault.InputEncodingInvalid)
}

func TestCheckRemoteRef(t *testing.T) {
	deny := DefaultPolicy()
	expectCode(t, CheckRemoteRef(deny, "https://example.com/x", ""), fault.InputNetworkDisabled)

	pinned := DefaultPolicy()
	pinned.Network = NetworkPinnedOnly
	expectCode(t, CheckRemoteRef(pinned, "https://example.com/x", ""), fault.InputNetworkDisabled)

	sum := sha256.Sum256([]byte("content"))
	if err := CheckRemoteRef(pinned, "https://example.com/x", hex.EncodeToString(sum[:])); err != nil {
		t.Errorf("pinned reference rejected: %v", err)
	}
}

func TestVerifyPinned(t *testing.T) {
	data := []byte("pinned content")
	sum := sha256.Sum256(data)
	if err := VerifyPinned(data, hex.EncodeToString(sum[:])); err != nil {
		t.Fatalf("matching pin rejected: %v", err)
	}
	other := sha256.Sum256([]byte("different"))
	expectCode(t, VerifyPinned(data, hex.EncodeToString(other[:])), fault.InputChecksumMismatch)
}
