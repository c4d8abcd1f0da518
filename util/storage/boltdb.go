package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/boltdb/bolt"
	"time"
)

const STATUS_BUCKET = "status"
const COMPLETED_BUCKET = "completed"
const EXPIRY_BUCKET = "expiry"

// BoltStore keeps deposit status and completion logs in a bolt
// database, which is a single-file key-value store. It suits a
// single supervisor host. Status maps and completion logs are
// gob-encoded, one key per deposit in each bucket.
//
// Bolt has no native expiry, so expiry times are kept in their own
// bucket. Expired deposits read as empty and are removed the next
// time they are read, or by PurgeExpired.
type BoltStore struct {
	db       *bolt.DB
	filePath string
	now      func() time.Time
}

// NewBoltStore opens a bolt database, creating the DB file if it
// doesn't already exist.
func NewBoltStore(filePath string) (boltStore *BoltStore, err error) {
	db, err := bolt.Open(filePath, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err == nil {
		boltStore = &BoltStore{
			db:       db,
			filePath: filePath,
			now:      time.Now,
		}
		err = boltStore.initBuckets()
	}
	return boltStore, err
}

func (boltStore *BoltStore) initBuckets() error {
	err := boltStore.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{STATUS_BUCKET, COMPLETED_BUCKET, EXPIRY_BUCKET} {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("Error creating %s bucket: %s", name, err)
			}
		}
		return nil
	})
	return err
}

// FilePath returns the path to the bolt DB file.
func (boltStore *BoltStore) FilePath() string {
	return boltStore.filePath
}

// Close closes the bolt database.
func (boltStore *BoltStore) Close() error {
	return boltStore.db.Close()
}

// SetClock replaces the store's clock. For testing expiry.
func (boltStore *BoltStore) SetClock(now func() time.Time) {
	boltStore.now = now
}

func encode(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := gob.NewEncoder(buf).Encode(value)
	return buf.Bytes(), err
}

func decode(data []byte, value interface{}) error {
	return gob.NewDecoder(bytes.NewBuffer(data)).Decode(value)
}

func (boltStore *BoltStore) isExpired(tx *bolt.Tx, depositId string) bool {
	value := tx.Bucket([]byte(EXPIRY_BUCKET)).Get([]byte(depositId))
	if len(value) == 0 {
		return false
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, string(value))
	return err == nil && !boltStore.now().Before(expiresAt)
}

func deleteDeposit(tx *bolt.Tx, depositId string) error {
	for _, name := range []string{STATUS_BUCKET, COMPLETED_BUCKET, EXPIRY_BUCKET} {
		if err := tx.Bucket([]byte(name)).Delete([]byte(depositId)); err != nil {
			return err
		}
	}
	return nil
}

func readFields(tx *bolt.Tx, depositId string) (map[string]string, error) {
	fields := make(map[string]string)
	value := tx.Bucket([]byte(STATUS_BUCKET)).Get([]byte(depositId))
	if len(value) > 0 {
		if err := decode(value, &fields); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func readTokens(tx *bolt.Tx, depositId string) ([]string, error) {
	tokens := make([]string, 0)
	value := tx.Bucket([]byte(COMPLETED_BUCKET)).Get([]byte(depositId))
	if len(value) > 0 {
		if err := decode(value, &tokens); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// updateLive runs fn in a write transaction, first discarding the
// deposit's data if it has expired.
func (boltStore *BoltStore) updateLive(depositId string, fn func(tx *bolt.Tx) error) error {
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		if boltStore.isExpired(tx, depositId) {
			if err := deleteDeposit(tx, depositId); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

// GetStatus returns the deposit's status. Deposits we have never seen,
// and expired deposits, return an empty status.
func (boltStore *BoltStore) GetStatus(depositId string) (*models.DepositStatus, error) {
	var fields map[string]string
	err := boltStore.updateLive(depositId, func(tx *bolt.Tx) error {
		var err error
		fields, err = readFields(tx, depositId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return models.NewDepositStatus(depositId, fields), nil
}

// UpdateStatus sets one status field, leaving the others alone.
func (boltStore *BoltStore) UpdateStatus(depositId, field, value string) error {
	return boltStore.updateLive(depositId, func(tx *bolt.Tx) error {
		fields, err := readFields(tx, depositId)
		if err != nil {
			return err
		}
		fields[field] = value
		data, err := encode(fields)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(STATUS_BUCKET)).Put([]byte(depositId), data)
	})
}

// ClearStatusFields removes fields from the deposit's status.
func (boltStore *BoltStore) ClearStatusFields(depositId string, fields ...string) error {
	return boltStore.updateLive(depositId, func(tx *bolt.Tx) error {
		current, err := readFields(tx, depositId)
		if err != nil {
			return err
		}
		for _, field := range fields {
			delete(current, field)
		}
		data, err := encode(current)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(STATUS_BUCKET)).Put([]byte(depositId), data)
	})
}

// ExpireStatus schedules the deposit's status and completion log
// for removal after ttl. Calling it again moves the expiry time.
func (boltStore *BoltStore) ExpireStatus(depositId string, ttl time.Duration) error {
	expiresAt := boltStore.now().Add(ttl).UTC().Format(time.RFC3339Nano)
	return boltStore.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(EXPIRY_BUCKET)).Put([]byte(depositId), []byte(expiresAt))
	})
}

// CompletedJobTypes returns the tokens in the deposit's completion
// log, in the order they were recorded.
func (boltStore *BoltStore) CompletedJobTypes(depositId string) ([]string, error) {
	var tokens []string
	err := boltStore.updateLive(depositId, func(tx *bolt.Tx) error {
		var err error
		tokens, err = readTokens(tx, depositId)
		return err
	})
	return tokens, err
}

// JobSucceeded adds jobType to the deposit's completion log. Adding
// a job type that is already there changes nothing.
func (boltStore *BoltStore) JobSucceeded(depositId string, jobType constants.JobType) error {
	if !jobType.IsRecordable() {
		return fmt.Errorf("Job type %s cannot be recorded", jobType)
	}
	return boltStore.updateLive(depositId, func(tx *bolt.Tx) error {
		tokens, err := readTokens(tx, depositId)
		if err != nil {
			return err
		}
		for _, token := range tokens {
			if token == jobType.String() {
				return nil
			}
		}
		data, err := encode(append(tokens, jobType.String()))
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(COMPLETED_BUCKET)).Put([]byte(depositId), data)
	})
}

// PurgeExpired removes every expired deposit and returns how many
// it removed.
func (boltStore *BoltStore) PurgeExpired() (int, error) {
	count := 0
	err := boltStore.db.Update(func(tx *bolt.Tx) error {
		expired := make([]string, 0)
		c := tx.Bucket([]byte(EXPIRY_BUCKET)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if boltStore.isExpired(tx, string(k)) {
				expired = append(expired, string(k))
			}
		}
		for _, depositId := range expired {
			if err := deleteDeposit(tx, depositId); err != nil {
				return err
			}
		}
		count = len(expired)
		return nil
	})
	return count, err
}
