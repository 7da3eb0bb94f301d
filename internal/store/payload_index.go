package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jsbattig/code-indexer-sub023/internal/ierr"
)

// payloadIndex maintains postings files under payload/<field>/<value_hash>.list,
// one sorted, newline-separated list of PointIDs per (field, value) pair.
type payloadIndex struct {
	dir string
	mu  sync.Mutex
}

func newPayloadIndex(indexDir string) *payloadIndex {
	return &payloadIndex{dir: filepath.Join(indexDir, "payload")}
}

// ensure creates the five required field subdirectories, idempotently.
func (p *payloadIndex) ensure() error {
	for _, field := range IndexedFields {
		if err := os.MkdirAll(filepath.Join(p.dir, field), 0o755); err != nil {
			return ierr.New(ierr.StorageIOFailed, "failed to create payload index dir for "+field, err)
		}
	}
	return nil
}

func valueHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

func (p *payloadIndex) postingsPath(field, value string) string {
	return filepath.Join(p.dir, field, valueHash(value)+".list")
}

// fieldValues extracts the indexable value(s) for the payload under field.
func fieldValues(field string, payload Payload) []string {
	switch field {
	case FieldType:
		return []string{payload.Type}
	case FieldPath:
		return []string{payload.FilePath}
	case FieldGitBranch:
		if payload.GitBranch == "" {
			return nil
		}
		return []string{payload.GitBranch}
	case FieldHiddenBranches:
		return payload.HiddenBranches
	default:
		return nil
	}
}

// add inserts id into the postings for every indexed value present in payload.
func (p *payloadIndex) add(id PointID, payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, field := range IndexedFields {
		if field == FieldFileMtime {
			continue // numeric range field: not postings-indexed, scanned directly
		}
		for _, value := range fieldValues(field, payload) {
			if err := p.appendID(p.postingsPath(field, value), id); err != nil {
				return err
			}
		}
	}
	return nil
}

// remove deletes id from the postings for every indexed value present in payload.
func (p *payloadIndex) remove(id PointID, payload Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, field := range IndexedFields {
		if field == FieldFileMtime {
			continue
		}
		for _, value := range fieldValues(field, payload) {
			if err := p.removeID(p.postingsPath(field, value), id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup returns the set of PointIDs posted for (field, value).
func (p *payloadIndex) Lookup(field, value string) (map[PointID]struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, err := p.readIDs(p.postingsPath(field, value))
	if err != nil {
		return nil, err
	}
	set := make(map[PointID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (p *payloadIndex) readIDs(path string) ([]PointID, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ierr.New(ierr.StorageIOFailed, "failed to open postings file "+path, err)
	}
	defer func() { _ = f.Close() }()

	var ids []PointID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			ids = append(ids, PointID(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, ierr.New(ierr.StorageIOFailed, "failed to read postings file "+path, err)
	}
	return ids, nil
}

func (p *payloadIndex) writeIDs(path string, ids []PointID) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(string(id))
		sb.WriteByte('\n')
	}
	return atomicWriteFile(path, []byte(sb.String()), 0o644)
}

func (p *payloadIndex) appendID(path string, id PointID) error {
	ids, err := p.readIDs(path)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return p.writeIDs(path, ids)
}

func (p *payloadIndex) removeID(path string, id PointID) error {
	ids, err := p.readIDs(path)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ierr.New(ierr.StorageIOFailed, "failed to remove empty postings file "+path, err)
		}
		return nil
	}
	return p.writeIDs(path, filtered)
}
