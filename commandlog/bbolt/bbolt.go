package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/prevaildb/prevail/core"
	"go.etcd.io/bbolt"
)

const recordBucketName = "records"

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// BBolt is a durable command log stored in a bbolt database file
type BBolt struct {
	db *bbolt.DB
}

// boltRecord is the stored representation of one log record
type boltRecord struct {
	ID   string
	Data []byte
}

// Open the command log in the given file. The file is created and
// initialized if it does not exist.
func Open(dbFile string) (*BBolt, error) {
	db, err := bbolt.Open(dbFile, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create record bucket: %v", err)
	}
	return &BBolt{db: db}, nil
}

// Append one record durably and return its assigned sequence number
func (l *BBolt) Append(data []byte) (uint64, error) {
	id, err := uuid.NewV1()
	if err != nil {
		return 0, fmt.Errorf("could not generate record id: %v", err)
	}

	var sequence uint64
	err = l.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		if bucket == nil {
			return fmt.Errorf("record bucket not found")
		}
		// NextSequence counts from 1, sequence numbers from 0
		next, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("could not get next sequence: %v", err)
		}
		sequence = next - 1

		value, err := json.Marshal(boltRecord{ID: id.String(), Data: data})
		if err != nil {
			return fmt.Errorf("could not serialize record: %v", err)
		}
		return bucket.Put(itob(sequence), value)
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// Len is the count of records ever appended
func (l *BBolt) Len() (uint64, error) {
	var n uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		if bucket == nil {
			return fmt.Errorf("record bucket not found")
		}
		n = bucket.Sequence()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReadFrom returns an independent cursor over records with sequence number
// >= sequence. The cursor holds a read transaction until closed.
func (l *BBolt) ReadFrom(ctx context.Context, sequence uint64) (core.RecordIterator, error) {
	tx, err := l.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &iterator{tx: tx, firstSequence: sequence}, nil
}

// Close the log and the underlying database
func (l *BBolt) Close() error {
	return l.db.Close()
}
