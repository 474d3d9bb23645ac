package bbolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/prevaildb/prevail/core"
	"go.etcd.io/bbolt"
)

type iterator struct {
	tx            *bbolt.Tx
	firstSequence uint64
	cursor        *bbolt.Cursor
}

// Close closes the iterator and releases its read transaction
func (i *iterator) Close() {
	i.tx.Rollback()
}

// Next return the next record
func (i *iterator) Next() (core.Record, error) {
	var k, obj []byte
	if i.cursor == nil {
		bucket := i.tx.Bucket([]byte(recordBucketName))
		if bucket == nil {
			return core.Record{}, core.ErrNoMoreRecords
		}
		i.cursor = bucket.Cursor()
		k, obj = i.cursor.Seek(itob(i.firstSequence))
	} else {
		k, obj = i.cursor.Next()
	}
	if k == nil {
		return core.Record{}, core.ErrNoMoreRecords
	}
	record := boltRecord{}
	if err := json.Unmarshal(obj, &record); err != nil {
		return core.Record{}, fmt.Errorf("could not deserialize record: %v", err)
	}
	return core.Record{
		Sequence: binary.BigEndian.Uint64(k),
		ID:       record.ID,
		Data:     record.Data,
	}, nil
}
