package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// patchIndexFile maps archived patch_ids to their commit shas so duplicate
// identifiers are rejected instead of silently overwritten.
const patchIndexFile = "patch_index.jsonl"

// patchIndexEntry is one line of the patch index.
type patchIndexEntry struct {
	PatchID string `json:"patch_id"`
	SHA     string `json:"sha"`
}

// patchIDOwner returns the sha a patch_id was first archived for, if any.
func (s *Store) patchIDOwner(patchID string) (string, bool, error) {
	path := filepath.Join(s.root, patchIndexFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("open patch index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry patchIndexEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Skip malformed lines; the index is advisory, the
			// archives themselves are the source of truth.
			continue
		}
		if entry.PatchID == patchID {
			return entry.SHA, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("scan patch index: %w", err)
	}
	return "", false, nil
}

// recordPatchID appends a patch_id to sha mapping to the index.
func (s *Store) recordPatchID(patchID, sha string) error {
	if _, ok, err := s.patchIDOwner(patchID); err != nil {
		return err
	} else if ok {
		return nil
	}

	line, err := json.Marshal(patchIndexEntry{PatchID: patchID, SHA: sha})
	if err != nil {
		return fmt.Errorf("marshal patch index entry: %w", err)
	}

	path := filepath.Join(s.root, patchIndexFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open patch index: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append patch index: %w", err)
	}
	return nil
}
