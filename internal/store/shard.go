package store

import (
	"path/filepath"

	"github.com/google/uuid"
)

// NewPointID generates a fresh, unique PointID.
func NewPointID() PointID {
	return PointID(uuid.New().String())
}

// ShardPath returns the deterministic on-disk path for id's ChunkRecord,
// sharded two hex-character levels deep by the id's own characters so
// directories stay shallow and roughly balanced regardless of id format.
func ShardPath(vectorsDir string, id PointID) string {
	s := string(id)
	aa, bb := "00", "00"
	if len(s) >= 2 {
		aa = s[0:2]
	}
	if len(s) >= 4 {
		bb = s[2:4]
	}
	return filepath.Join(vectorsDir, aa, bb, s+".json")
}
