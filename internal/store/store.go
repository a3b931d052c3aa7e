// Package store persists the engine's durable view: the latest active
// record per address, plus an append-only history of terminal states.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"scale-bot/internal/errs"
	"scale-bot/pkg/types"
)

// encodeGob and decodeGob wrap the stdlib gob codec, matching the
// pebble-backed store in the retrieved pack (hyperlicked's
// pkg/storage/pebble_store.go) rather than a schema-on-the-wire format:
// each record is encoded with its own gob.Encoder, so every stored value
// carries its own type description and decodes independently.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, dst any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(dst)
}

// Prefix namespaces a key as either the live view or terminal history.
type Prefix string

const (
	PrefixActive  Prefix = "active"
	PrefixHistory Prefix = "history"
)

// Keys builds the `_`-joined storage key for a record: <prefix>_<tag>_<addr>[_<addr>].
// Positions additionally key by account so a single account's closed
// positions can be range-scanned together.
type Keys struct {
	prefix Prefix
	tag    types.StateTag
	parts  []string
}

func NewKeys(prefix Prefix, tag types.StateTag, addrs ...types.Address) Keys {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return Keys{prefix: prefix, tag: tag, parts: parts}
}

// Bytes renders the full storage key.
func (k Keys) Bytes() []byte {
	b := strings.Builder{}
	b.WriteString(string(k.prefix))
	b.WriteByte('_')
	b.WriteString(k.tag.String())
	for _, p := range k.parts {
		b.WriteByte('_')
		b.WriteString(p)
	}
	return []byte(b.String())
}

// prefixBytes renders the scan prefix for a Prefix+tag pair (no address).
func prefixBytes(prefix Prefix, tag types.StateTag) []byte {
	return []byte(string(prefix) + "_" + tag.String() + "_")
}

// keyUpperBound returns the smallest key greater than every key sharing
// the given prefix, for use as a pebble IterOptions.UpperBound.
func keyUpperBound(prefix []byte) []byte {
	up := make([]byte, len(prefix))
	copy(up, prefix)
	for i := len(up) - 1; i >= 0; i-- {
		if up[i] < 0xff {
			up[i]++
			return up[:i+1]
		}
	}
	return nil // prefix is all 0xff, unbounded
}

// Store wraps an embedded KV rooted at <store_path>/accounts.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the Pebble database at dir/accounts.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir+"/accounts", &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.Storage, dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveToActive upserts value under the active prefix for the given tag and
// address tuple.
func (s *Store) SaveToActive(tag types.StateTag, value any, addrs ...types.Address) error {
	data, err := encodeGob(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", errs.Storage, tag, err)
	}
	key := NewKeys(PrefixActive, tag, addrs...).Bytes()
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("%w: set %s: %v", errs.Storage, tag, err)
	}
	return nil
}

// SaveAsHistory atomically removes the active record and inserts the given
// value under the history prefix. No observer ever sees both keys absent
// or both present: the delete and insert commit in one Pebble batch.
func (s *Store) SaveAsHistory(tag types.StateTag, value any, addrs ...types.Address) error {
	data, err := encodeGob(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", errs.Storage, tag, err)
	}
	activeKey := NewKeys(PrefixActive, tag, addrs...).Bytes()
	historyKey := NewKeys(PrefixHistory, tag, addrs...).Bytes()

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(activeKey, nil); err != nil {
		return fmt.Errorf("%w: batch delete: %v", errs.Storage, err)
	}
	if err := batch.Set(historyKey, data, nil); err != nil {
		return fmt.Errorf("%w: batch set: %v", errs.Storage, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: commit history move for %s: %v", errs.Storage, tag, err)
	}
	return nil
}

// Delete removes the active record for the given tag/address tuple
// without moving it to history. The ingest watcher does not call it:
// deleted markets, accounts and positions go through SaveAsHistory.
func (s *Store) Delete(tag types.StateTag, addrs ...types.Address) error {
	key := NewKeys(PrefixActive, tag, addrs...).Bytes()
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("%w: delete %s: %v", errs.Storage, tag, err)
	}
	return nil
}

// RawEntry is one decoded-or-raw record returned by a scan. Decode is
// deferred to the caller via Unmarshal since the caller knows, from the
// tag it scanned, which concrete type to decode into.
type RawEntry struct {
	Key   []byte
	Value []byte
}

// Unmarshal decodes the entry's value into dst.
func (e RawEntry) Unmarshal(dst any) error {
	return decodeGob(e.Value, dst)
}

// ScanPrefix iterates every entry under prefix+tag, in key order. A
// decode failure is the caller's concern; ScanPrefix hands back raw bytes
// so a bad record can be logged and skipped without aborting the scan.
func (s *Store) ScanPrefix(prefix Prefix, tag types.StateTag, fn func(RawEntry) error) error {
	lo := prefixBytes(prefix, tag)
	hi := keyUpperBound(lo)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("%w: scan %s/%s: %v", errs.Storage, prefix, tag, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		if err := fn(RawEntry{Key: key, Value: val}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// GetPositionHistoryList iterates the closed positions belonging to one
// account, in history-key order.
func (s *Store) GetPositionHistoryList(account types.Address, fn func(RawEntry) error) error {
	lo := append(prefixBytes(PrefixHistory, types.StatePosition), []byte(account.String()+"_")...)
	hi := keyUpperBound(lo)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return fmt.Errorf("%w: position history for %s: %v", errs.Storage, account, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		if err := fn(RawEntry{Key: key, Value: val}); err != nil {
			return err
		}
	}
	return iter.Error()
}
