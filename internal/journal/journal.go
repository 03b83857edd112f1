// Package journal keeps the faults that led to a restart in a bbolt file so
// they survive the reboot that follows.
package journal

import (
	"encoding/binary"
	"fmt"
	"time"

	"sensor_gateway/internal/models"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var faultsBucket = []byte("faults")

// DefaultRetention is the number of records kept by Open.
const DefaultRetention = 100

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR decoder mode: %v", err))
	}
}

// Journal is an append-only, bounded fault log.
type Journal struct {
	db        *bolt.DB
	retention int
}

// Open opens or creates the journal file at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(faultsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}
	return &Journal{db: db, retention: DefaultRetention}, nil
}

// Record appends f, assigning an ID if it has none, and drops the oldest
// records beyond the retention limit. The write is synced before returning.
func (j *Journal) Record(f models.Fault) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now().UTC()
	}
	data, err := encMode.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fault: %w", err)
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(faultsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return trim(b, j.retention)
	})
}

// trim deletes the oldest keys beyond keep. Bucket stats only cover
// committed pages, so keys are counted with a cursor.
func trim(b *bolt.Bucket, keep int) error {
	excess := countKeys(b) - keep
	if excess <= 0 {
		return nil
	}
	var stale [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// Last returns the newest record, or nil when the journal is empty.
func (j *Journal) Last() (*models.Fault, error) {
	faults, err := j.List(1)
	if err != nil || len(faults) == 0 {
		return nil, err
	}
	return &faults[0], nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (j *Journal) List(limit int) ([]models.Fault, error) {
	out := make([]models.Fault, 0)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(faultsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var f models.Fault
			if err := decMode.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("decode fault %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
