// Copyright 2025 Signia Protocol
//
// Input Normalizer
// Builds a logical read-only file tree from a directory, archive bytes, or a
// single file. All exposed paths use forward slashes under a stable logical
// root; traversal emits entries in ascending path order so filesystem
// iteration order never affects outputs.

package input

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// File is one entry of the logical tree. Path is the logical path including
// the policy root prefix; Data is normalized content.
type File struct {
	Path string
	Data []byte
}

// Tree is the read-only normalized file tree handed to plugins.
type Tree struct {
	policy     Policy
	files      []File
	byPath     map[string]int
	totalBytes int64
}

// Policy returns the policy the tree was built under.
func (t *Tree) Policy() Policy { return t.policy }

// Files returns all entries in ascending path order.
func (t *Tree) Files() []File { return t.files }

// Len returns the number of entries.
func (t *Tree) Len() int { return len(t.files) }

// TotalBytes returns the summed size of all entries.
func (t *Tree) TotalBytes() int64 { return t.totalBytes }

// Get returns the entry at a logical path.
func (t *Tree) Get(logical string) (File, bool) {
	i, ok := t.byPath[logical]
	if !ok {
		return File{}, false
	}
	return t.files[i], true
}

// Rel strips the logical root prefix from a path, for use in stable ids.
func (t *Tree) Rel(logical string) string {
	return strings.TrimPrefix(logical, t.policy.PathRoot)
}

type rawEntry struct {
	rel  string
	data []byte
}

// FromFile builds a single-entry tree from raw bytes.
func FromFile(name string, data []byte, pol Policy) (*Tree, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	rel := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if rel == "." || rel == "" {
		rel = "input"
	}
	return assemble([]rawEntry{{rel: rel, data: data}}, pol)
}

// FromDir walks a directory, applying the symlink policy and limits, and
// builds the logical tree.
func FromDir(root string, pol Policy) (*Tree, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fault.New(fault.Internal, "input root is not readable")
	}

	var entries []rawEntry
	walk := func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fault.New(fault.Internal, "input traversal failed")
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fault.New(fault.Internal, "input traversal failed")
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			switch pol.Symlinks {
			case SymlinksDeny:
				return fault.New(fault.InputSymlinksDenied, "input contains a symlink").
					With("path", rel)
			case SymlinksResolveRoot:
				resolved, err := filepath.EvalSymlinks(p)
				if err != nil {
					return fault.New(fault.InputSymlinksDenied, "symlink cannot be resolved").
						With("path", rel)
				}
				if !contained(resolvedRoot, resolved) {
					return fault.New(fault.InputArchiveTraversal, "symlink resolves outside the input root").
						With("path", rel)
				}
				info, err := os.Stat(resolved)
				if err != nil || info.IsDir() {
					return nil
				}
				data, err := os.ReadFile(resolved)
				if err != nil {
					return fault.New(fault.Internal, "input entry is not readable")
				}
				entries = append(entries, rawEntry{rel: rel, data: data})
				return nil
			}
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fault.New(fault.Internal, "input entry is not readable")
		}
		entries = append(entries, rawEntry{rel: rel, data: data})
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, err
	}
	return assemble(entries, pol)
}

// FromArchive builds the tree from archive bytes. Gzip-compressed tar, plain
// tar, and zip are recognized.
func FromArchive(data []byte, pol Policy) (*Tree, error) {
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	if len(data) >= 4 && data[0] == 'P' && data[1] == 'K' {
		return fromZip(data, pol)
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fault.New(fault.InputEncodingInvalid, "archive is not valid gzip")
		}
		defer gz.Close()
		return fromTar(gz, pol)
	}
	return fromTar(bytes.NewReader(data), pol)
}

func fromTar(r io.Reader, pol Policy) (*Tree, error) {
	tr := tar.NewReader(r)
	var entries []rawEntry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fault.New(fault.InputEncodingInvalid, "archive is not valid tar")
		}
		rel, err := archivePath(hdr.Name)
		if err != nil {
			return nil, err
		}
		switch hdr.Typeflag {
		case tar.TypeSymlink, tar.TypeLink:
			if pol.Symlinks == SymlinksDeny {
				return nil, fault.New(fault.InputSymlinksDenied, "archive contains a symlink").
					With("path", rel)
			}
			// Links inside archives cannot be resolved against a real
			// filesystem root; a link target escaping the archive is a
			// traversal either way.
			target := path.Clean(path.Join(path.Dir(rel), hdr.Linkname))
			if strings.HasPrefix(target, "..") || path.IsAbs(hdr.Linkname) {
				return nil, fault.New(fault.InputArchiveTraversal, "link target escapes the archive root").
					With("path", rel)
			}
			continue
		case tar.TypeReg:
		default:
			continue
		}
		if pol.MaxFileBytes > 0 && hdr.Size > pol.MaxFileBytes {
			return nil, tooLarge("max_file_bytes", hdr.Size, pol.MaxFileBytes)
		}
		data, err := io.ReadAll(io.LimitReader(tr, hdr.Size))
		if err != nil {
			return nil, fault.New(fault.InputEncodingInvalid, "archive entry is truncated")
		}
		entries = append(entries, rawEntry{rel: rel, data: data})
	}
	return assemble(entries, pol)
}

func fromZip(data []byte, pol Policy) (*Tree, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fault.New(fault.InputEncodingInvalid, "archive is not valid zip")
	}
	var entries []rawEntry
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rel, err := archivePath(zf.Name)
		if err != nil {
			return nil, err
		}
		if zf.Mode()&fs.ModeSymlink != 0 {
			if pol.Symlinks == SymlinksDeny {
				return nil, fault.New(fault.InputSymlinksDenied, "archive contains a symlink").
					With("path", rel)
			}
			continue
		}
		if pol.MaxFileBytes > 0 && int64(zf.UncompressedSize64) > pol.MaxFileBytes {
			return nil, tooLarge("max_file_bytes", int64(zf.UncompressedSize64), pol.MaxFileBytes)
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fault.New(fault.InputEncodingInvalid, "archive entry is not readable")
		}
		content, err := io.ReadAll(io.LimitReader(rc, int64(zf.UncompressedSize64)+1))
		rc.Close()
		if err != nil {
			return nil, fault.New(fault.InputEncodingInvalid, "archive entry is truncated")
		}
		entries = append(entries, rawEntry{rel: rel, data: content})
	}
	return assemble(entries, pol)
}

// archivePath cleans an archive entry name and rejects paths that resolve
// outside the root.
func archivePath(name string) (string, error) {
	rel := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(rel, "/") {
		return "", fault.New(fault.InputArchiveTraversal, "archive entry has an absolute path").
			With("path", name)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fault.New(fault.InputArchiveTraversal, "archive entry escapes the root").
			With("path", name)
	}
	return cleaned, nil
}

// assemble sorts entries by normalized path, applies limits in traversal
// order, and normalizes content.
func assemble(entries []rawEntry, pol Policy) (*Tree, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	t := &Tree{policy: pol, byPath: make(map[string]int, len(entries))}
	for _, e := range entries {
		if pol.MaxFiles > 0 && len(t.files) >= pol.MaxFiles {
			return nil, limitExceeded("max_files", int64(len(entries)), int64(pol.MaxFiles))
		}
		if pol.MaxDepth > 0 && strings.Count(e.rel, "/")+1 > pol.MaxDepth {
			return nil, limitExceeded("max_depth", int64(strings.Count(e.rel, "/")+1), int64(pol.MaxDepth))
		}
		if pol.MaxFileBytes > 0 && int64(len(e.data)) > pol.MaxFileBytes {
			return nil, tooLarge("max_file_bytes", int64(len(e.data)), pol.MaxFileBytes)
		}
		t.totalBytes += int64(len(e.data))
		if pol.MaxTotalBytes > 0 && t.totalBytes > pol.MaxTotalBytes {
			return nil, tooLarge("max_total_bytes", t.totalBytes, pol.MaxTotalBytes)
		}
		logical := pol.PathRoot + e.rel
		if _, dup := t.byPath[logical]; dup {
			// Case-divergent or link-collapsed duplicates would make the
			// tree ambiguous.
			return nil, fault.New(fault.InputArchiveTraversal, "duplicate logical path").
				With("path", logical)
		}
		t.byPath[logical] = len(t.files)
		t.files = append(t.files, File{Path: logical, Data: e.data})
	}
	return t, nil
}

// NormalizeText applies the newline and encoding rules to text content that
// will participate in a hashed domain.
func NormalizeText(data []byte, pol Policy) ([]byte, error) {
	if !utf8.Valid(data) {
		return nil, fault.New(fault.InputEncodingInvalid, "text content is not valid UTF-8")
	}
	if pol.Newline != NewlineLF {
		return nil, fault.New(fault.InputEncodingInvalid, "newline policy forbids hashing this content")
	}
	out := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	return out, nil
}

func contained(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func tooLarge(limit string, observed, bound int64) error {
	return fault.New(fault.InputTooLarge, "input exceeds byte limit").
		With("limit", limit).
		With("observed", strconv.FormatInt(observed, 10)).
		With("bound", strconv.FormatInt(bound, 10))
}

func limitExceeded(limit string, observed, bound int64) error {
	return fault.New(fault.LimitExceeded, "input exceeds ingest limit").
		With("limit", limit).
		With("observed", strconv.FormatInt(observed, 10)).
		With("bound", strconv.FormatInt(bound, 10))
}
