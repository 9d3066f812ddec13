// Package archive implements the content-addressed post-commit archive store.
// An archive freezes the full working tree at a commit together with one
// embedded metadata record duplicating the commit's PatchBlock; the
// redundancy lets Verify detect drift between the backend's history and the
// frozen copy. Archive bytes are deterministic, so the sha256 checksum is a
// pure function of tree content and metadata.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/greenledger/internal/codec"
	"github.com/mesh-intelligence/greenledger/internal/lockfile"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// Storage layout under the store root.
const (
	// DirName is the archive directory.
	DirName = "archive"

	// metadataEntry is the tar entry holding the embedded PatchBlock.
	metadataEntry = "patch_block.kv"

	// treePrefix namespaces working-tree entries inside the tarball so
	// they can never collide with the metadata entry.
	treePrefix = "tree/"

	// checksumSuffix is appended to the archive path for the sidecar.
	checksumSuffix = ".sha256"
)

// VerifyStatus is the outcome of an archive integrity check.
type VerifyStatus string

// Verify outcomes.
const (
	VerifyOk               VerifyStatus = "Ok"
	VerifyMissing          VerifyStatus = "Missing"
	VerifyCorrupt          VerifyStatus = "Corrupt"
	VerifyMetadataMismatch VerifyStatus = "MetadataMismatch"
)

// Archive describes one stored post-commit archive.
type Archive struct {
	SHA      string           `json:"sha"`
	Path     string           `json:"path"`
	Checksum string           `json:"checksum"`
	Metadata types.PatchBlock `json:"metadata"`
}

// Store creates, locates, and verifies post-commit archives under a storage
// root. The archive path is a pure function of the commit sha; no index is
// needed to locate one.
type Store struct {
	root string
}

// NewStore opens the archive store at the given storage root. The root and
// its archive directory must already exist; bootstrap is a separate step and
// the store never auto-creates its layout.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, DirName)} {
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", types.ErrStoreNotInitialized, dir)
			}
			return nil, fmt.Errorf("stat %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the storage root the store operates on.
func (s *Store) Root() string {
	return s.root
}

// Path returns the archive location for a commit sha.
func (s *Store) Path(sha string) string {
	return filepath.Join(s.root, DirName, fmt.Sprintf("patch_post_commit_%s.tar.gz", sha))
}

// Create archives the tree and PatchBlock for the given commit. Calling it
// again with identical content is idempotent; calling it with content that
// would produce a different checksum fails with ErrArchiveConflict, and a
// patch_id already archived for another commit fails with
// ErrDuplicateIdentifier.
func (s *Store) Create(sha string, tree types.Tree, pb types.PatchBlock) (Archive, error) {
	if sha == "" {
		return Archive{}, fmt.Errorf("create archive: empty sha")
	}
	if err := pb.Validate(); err != nil {
		return Archive{}, fmt.Errorf("create archive for %s: %w", sha, err)
	}

	release, err := lockfile.Acquire(s.root)
	if err != nil {
		return Archive{}, err
	}
	defer release()

	if owner, ok, err := s.patchIDOwner(pb.PatchID); err != nil {
		return Archive{}, err
	} else if ok && owner != sha {
		return Archive{}, fmt.Errorf("%w: patch_id %s already archived for commit %s",
			types.ErrDuplicateIdentifier, pb.PatchID, owner)
	}

	data, err := buildArchive(tree, pb)
	if err != nil {
		return Archive{}, fmt.Errorf("build archive for %s: %w", sha, err)
	}
	checksum := checksumOf(data)
	path := s.Path(sha)

	if existing, err := os.ReadFile(path); err == nil {
		if checksumOf(existing) != checksum {
			return Archive{}, fmt.Errorf("%w: sha %s", types.ErrArchiveConflict, sha)
		}
		// Identical content: idempotent re-archival.
		return Archive{SHA: sha, Path: path, Checksum: checksum, Metadata: pb}, nil
	} else if !os.IsNotExist(err) {
		return Archive{}, fmt.Errorf("read existing archive for %s: %w", sha, err)
	}

	if err := writeAtomic(path, data); err != nil {
		return Archive{}, fmt.Errorf("write archive for %s: %w", sha, err)
	}
	if err := writeAtomic(path+checksumSuffix, []byte(checksum+"\n")); err != nil {
		return Archive{}, fmt.Errorf("write checksum for %s: %w", sha, err)
	}
	if err := s.recordPatchID(pb.PatchID, sha); err != nil {
		return Archive{}, err
	}

	return Archive{SHA: sha, Path: path, Checksum: checksum, Metadata: pb}, nil
}

// Verify checks the archive for a commit: the checksum must match the sidecar
// record, and the embedded metadata must equal the PatchBlock the backend
// currently reports for the sha. Integrity failures are never auto-repaired.
func (s *Store) Verify(sha string, reported types.PatchBlock) (VerifyStatus, error) {
	path := s.Path(sha)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return VerifyMissing, fmt.Errorf("%w: sha %s (%s)", types.ErrArchiveMissing, sha, path)
		}
		return VerifyMissing, fmt.Errorf("read archive for %s: %w", sha, err)
	}

	recorded, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		return VerifyCorrupt, fmt.Errorf("%w: sha %s has no checksum record", types.ErrArchiveCorrupt, sha)
	}
	if checksumOf(data) != strings.TrimSpace(string(recorded)) {
		return VerifyCorrupt, fmt.Errorf("%w: sha %s checksum mismatch", types.ErrArchiveCorrupt, sha)
	}

	embedded, _, err := readArchive(data)
	if err != nil {
		return VerifyCorrupt, fmt.Errorf("%w: sha %s: %v", types.ErrArchiveCorrupt, sha, err)
	}
	if embedded != reported {
		return VerifyMetadataMismatch, fmt.Errorf(
			"%w: sha %s: archived %s/%s/%s, backend reports %s/%s/%s",
			types.ErrMetadataMismatch, sha,
			embedded.PatchID, embedded.Status, embedded.Source,
			reported.PatchID, reported.Status, reported.Source)
	}
	return VerifyOk, nil
}

// ReadTree returns the working tree frozen in the archive for a commit.
func (s *Store) ReadTree(sha string) (types.Tree, error) {
	data, err := os.ReadFile(s.Path(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: sha %s", types.ErrArchiveMissing, sha)
		}
		return nil, fmt.Errorf("read archive for %s: %w", sha, err)
	}
	_, tree, err := readArchive(data)
	if err != nil {
		return nil, fmt.Errorf("%w: sha %s: %v", types.ErrArchiveCorrupt, sha, err)
	}
	return tree, nil
}

// ExtractTo unpacks the archived tree into dest (the rollback scratch
// location) and returns it. dest must exist.
func (s *Store) ExtractTo(sha, dest string) (types.Tree, error) {
	tree, err := s.ReadTree(sha)
	if err != nil {
		return nil, err
	}
	for _, path := range tree.Paths() {
		full := filepath.Join(dest, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		if err := os.WriteFile(full, tree[path], 0o644); err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
	}
	return tree, nil
}

// buildArchive serializes the tree and metadata as a deterministic tar.gz:
// fixed entry order, zeroed timestamps, fixed modes and ownership. Identical
// input always yields byte-identical output.
func buildArchive(tree types.Tree, pb types.PatchBlock) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(gw)

	entries := make([]string, 0, len(tree)+1)
	content := make(map[string][]byte, len(tree)+1)
	content[metadataEntry] = []byte(codec.FormatBody(pb) + "\n")
	entries = append(entries, metadataEntry)
	for path, data := range tree {
		name := treePrefix + path
		entries = append(entries, name)
		content[name] = data
	}
	sort.Strings(entries)

	for _, name := range entries {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(content[name])),
			ModTime: time.Unix(0, 0).UTC(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(content[name]); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readArchive parses archive bytes back into the embedded PatchBlock and the
// frozen tree.
func readArchive(data []byte) (types.PatchBlock, types.Tree, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return types.PatchBlock{}, nil, fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	tree := types.Tree{}
	var pb types.PatchBlock
	sawMetadata := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return types.PatchBlock{}, nil, fmt.Errorf("tar: %w", err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return types.PatchBlock{}, nil, fmt.Errorf("tar entry %s: %w", hdr.Name, err)
		}
		switch {
		case hdr.Name == metadataEntry:
			pb, err = codec.ParseBody(strings.TrimRight(string(body), "\n"))
			if err != nil {
				return types.PatchBlock{}, nil, fmt.Errorf("embedded metadata: %w", err)
			}
			sawMetadata = true
		case strings.HasPrefix(hdr.Name, treePrefix):
			tree[strings.TrimPrefix(hdr.Name, treePrefix)] = body
		default:
			return types.PatchBlock{}, nil, fmt.Errorf("unexpected tar entry %q", hdr.Name)
		}
	}
	if !sawMetadata {
		return types.PatchBlock{}, nil, fmt.Errorf("missing %s entry", metadataEntry)
	}
	return pb, tree, nil
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeAtomic writes via temp file then rename so a failed write never
// leaves a half-written archive in place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
