package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"moxieprotocol/storage"
)

// Manager is the journaled key/value state shared by every protocol engine.
// Writes are buffered in memory and only reach the backing database on
// Commit; snapshots allow a failed call to roll back exactly the writes it
// made, including the writes of nested engine calls.
type Manager struct {
	db      storage.Database
	dirty   map[string]dirtyValue
	journal []journalEntry
}

type dirtyValue struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    dirtyValue
	present bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]dirtyValue)}
}

func (m *Manager) raw(key []byte) ([]byte, bool, error) {
	if v, ok := m.dirty[string(key)]; ok {
		if v.deleted {
			return nil, false, nil
		}
		return v.value, true, nil
	}
	if m.db == nil {
		return nil, false, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > 0, nil
}

func (m *Manager) write(key []byte, v dirtyValue) {
	k := string(key)
	prev, present := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, present: present})
	m.dirty[k] = v
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(key, dirtyValue{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.raw(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// KVDelete removes the key. Deleting an absent key is a no-op.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(key, dirtyValue{deleted: true})
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.present {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:id]
}

// Pending reports how many keys have uncommitted writes.
func (m *Manager) Pending() int { return len(m.dirty) }

// Commit flushes buffered writes to the database in a single batch and
// clears the journal.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	if m.db == nil {
		return fmt.Errorf("state: no database configured")
	}
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, key := range keys {
		v := m.dirty[key]
		if v.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), v.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]dirtyValue)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.dirty = make(map[string]dirtyValue)
	m.journal = m.journal[:0]
}
