// Package ledger implements the green tag ledger: an append-only JSONL index
// mapping tag names to commit shas. Recording enforces, at write time, that a
// green tag only ever points to a commit whose archive verifies clean. Tags
// are write-once; resolution orders them by embedded date then short sha,
// never by creation wall-clock.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mesh-intelligence/greenledger/internal/archive"
	"github.com/mesh-intelligence/greenledger/internal/lockfile"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// IndexFile is the tag index under the storage root.
const IndexFile = "tags.jsonl"

// Ledger owns the set of green tags for one storage root.
type Ledger struct {
	root     string
	archives *archive.Store
}

// New opens the tag ledger at the given storage root, backed by the archive
// store it consults before recording.
func New(root string, archives *archive.Store) (*Ledger, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrStoreNotInitialized, root)
		}
		return nil, fmt.Errorf("stat store root %s: %w", root, err)
	}
	return &Ledger{root: root, archives: archives}, nil
}

// Record writes a green tag for a commit. The archive for the sha must verify
// Ok against the PatchBlock the backend currently reports; re-recording an
// existing name with a different sha fails with ErrTagImmutable, while
// re-recording the identical pair is idempotent.
func (l *Ledger) Record(name, sha string, reported types.PatchBlock) (types.GreenTag, error) {
	if _, short, err := types.ParseTagName(name); err != nil {
		return types.GreenTag{}, fmt.Errorf("record tag %q: %w", name, err)
	} else if !strings.HasPrefix(sha, short) {
		return types.GreenTag{}, fmt.Errorf("record tag %q: embedded short sha %s does not match commit %s",
			name, short, sha)
	}

	release, err := lockfile.Acquire(l.root)
	if err != nil {
		return types.GreenTag{}, err
	}
	defer release()

	tags, err := l.load()
	if err != nil {
		return types.GreenTag{}, err
	}
	for _, tag := range tags {
		if tag.Name != name {
			continue
		}
		if tag.SHA == sha {
			return tag, nil
		}
		return types.GreenTag{}, fmt.Errorf("%w: tag %s already records commit %s",
			types.ErrTagImmutable, name, tag.SHA)
	}

	if status, err := l.archives.Verify(sha, reported); status != archive.VerifyOk {
		return types.GreenTag{}, fmt.Errorf("record tag %s: archive for %s is %s: %w",
			name, sha, status, err)
	}

	tag := types.GreenTag{Name: name, SHA: sha, CreatedAt: time.Now().UTC()}
	if err := l.append(tag); err != nil {
		return types.GreenTag{}, err
	}
	return tag, nil
}

// Resolve returns the green tag with the given name.
func (l *Ledger) Resolve(name string) (types.GreenTag, error) {
	tags, err := l.load()
	if err != nil {
		return types.GreenTag{}, err
	}
	for _, tag := range tags {
		if tag.Name == name {
			return tag, nil
		}
	}
	return types.GreenTag{}, fmt.Errorf("%w: %s", types.ErrTagNotFound, name)
}

// ResolveLatest returns the maximum green tag under the (date, short sha)
// total order.
func (l *Ledger) ResolveLatest() (types.GreenTag, error) {
	tags, err := l.load()
	if err != nil {
		return types.GreenTag{}, err
	}
	if len(tags) == 0 {
		return types.GreenTag{}, types.ErrNoGreenTags
	}
	latest := tags[0]
	for _, tag := range tags[1:] {
		if latest.Less(tag) {
			latest = tag
		}
	}
	return latest, nil
}

// List returns all recorded green tags in recording order.
func (l *Ledger) List() ([]types.GreenTag, error) {
	return l.load()
}

func (l *Ledger) indexPath() string {
	return filepath.Join(l.root, IndexFile)
}

// load reads the tag index. A missing index means no tags yet; malformed
// lines are skipped.
func (l *Ledger) load() ([]types.GreenTag, error) {
	f, err := os.Open(l.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open tag index: %w", err)
	}
	defer f.Close()

	var tags []types.GreenTag
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var tag types.GreenTag
		if err := json.Unmarshal(line, &tag); err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan tag index: %w", err)
	}
	return tags, nil
}

func (l *Ledger) append(tag types.GreenTag) error {
	line, err := json.Marshal(tag)
	if err != nil {
		return fmt.Errorf("marshal tag %s: %w", tag.Name, err)
	}
	f, err := os.OpenFile(l.indexPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tag index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append tag %s: %w", tag.Name, err)
	}
	return nil
}
