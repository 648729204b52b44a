package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"peerlend/core/types"
	"peerlend/native/loan"
	"peerlend/native/pool"
	"peerlend/storage"
)

// Key namespaces. Every stored record lives under the keccak hash of its
// namespaced key so the key space is uniform and collision free.
const (
	prefixAccount  = "acct/"
	prefixLoan     = "loan/"
	prefixRole     = "role/"
	prefixPause    = "pause/"
	keyLoanIndex   = "loan-index"
	keyLoanCounter = "loan-seq"
	keyPool        = "pool-state"
)

// Manager is the durable ledger: accounts, loan records, the loan index, the
// pool singleton, role sets and pause flags, all RLP-encoded under
// keccak-hashed keys in the underlying key-value store. It implements the
// state surfaces the native engines consume.
type Manager struct {
	db storage.Database
}

// NewManager wraps the given key-value store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func hashKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

func accountKey(addr []byte) []byte {
	return hashKey([]byte(prefixAccount), addr)
}

func loanKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return hashKey([]byte(prefixLoan), buf[:])
}

func roleKey(role string) []byte {
	return hashKey([]byte(prefixRole), []byte(role))
}

func pauseKey(module string) []byte {
	return hashKey([]byte(prefixPause), []byte(module))
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key[:4], err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key[:4], err)
	}
	return m.db.Put(key, raw)
}

// GetAccount returns the stored account, or a zero-balance account when the
// address has never been seen.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.get(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		account = &types.Account{}
	}
	account.EnsureDefaults()
	return account, nil
}

// PutAccount persists the account under its address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	account.EnsureDefaults()
	return m.put(accountKey(addr), account)
}

// LoanGet returns the stored loan record, or nil when the id is unknown.
func (m *Manager) LoanGet(id uint64) (*loan.Record, error) {
	rec := new(loan.Record)
	ok, err := m.get(loanKey(id), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rec.EnsureDefaults()
	return rec, nil
}

// LoanPut persists the loan record and registers its id in the index.
func (m *Manager) LoanPut(rec *loan.Record) error {
	if rec == nil {
		return errors.New("state: nil loan record")
	}
	rec.EnsureDefaults()
	if err := m.put(loanKey(rec.ID), rec); err != nil {
		return err
	}
	return m.indexLoan(rec.ID)
}

func (m *Manager) indexLoan(id uint64) error {
	ids, err := m.LoanIDs()
	if err != nil {
		return err
	}
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos < len(ids) && ids[pos] == id {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return m.put(hashKey([]byte(keyLoanIndex)), ids)
}

// LoanIDs returns every recorded loan id in ascending order.
func (m *Manager) LoanIDs() ([]uint64, error) {
	var ids []uint64
	if _, err := m.get(hashKey([]byte(keyLoanIndex)), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// NextLoanID allocates the next sequential loan identifier, starting at 1.
func (m *Manager) NextLoanID() (uint64, error) {
	var counter uint64
	if _, err := m.get(hashKey([]byte(keyLoanCounter)), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := m.put(hashKey([]byte(keyLoanCounter)), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// PoolGet returns the singleton pool state, or nil when none has been
// persisted yet.
func (m *Manager) PoolGet() (*pool.State, error) {
	s := new(pool.State)
	ok, err := m.get(hashKey([]byte(keyPool)), s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.EnsureDefaults()
	return s, nil
}

// PoolPut persists the singleton pool state.
func (m *Manager) PoolPut(s *pool.State) error {
	if s == nil {
		return errors.New("state: nil pool state")
	}
	s.EnsureDefaults()
	return m.put(hashKey([]byte(keyPool)), s)
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	var members [][]byte
	if _, err := m.get(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the address holds the role. Storage errors read as
// "no role": authorization checks fail closed.
func (m *Manager) HasRole(role string, addr []byte) bool {
	members, err := m.roleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// SetRole grants the role to the address. Members are kept sorted so the
// persisted encoding is canonical.
func (m *Manager) SetRole(role string, addr []byte) error {
	members, err := m.roleMembers(role)
	if err != nil {
		return err
	}
	pos := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr) >= 0 })
	if pos < len(members) && bytes.Equal(members[pos], addr) {
		return nil
	}
	members = append(members, nil)
	copy(members[pos+1:], members[pos:])
	members[pos] = append([]byte(nil), addr...)
	return m.put(roleKey(role), members)
}

// RevokeRole removes the role from the address.
func (m *Manager) RevokeRole(role string, addr []byte) error {
	members, err := m.roleMembers(role)
	if err != nil {
		return err
	}
	for i, member := range members {
		if bytes.Equal(member, addr) {
			members = append(members[:i], members[i+1:]...)
			return m.put(roleKey(role), members)
		}
	}
	return nil
}

// RoleMembers returns the sorted member list for a role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	return m.roleMembers(role)
}

// SetPaused flips a module's circuit-breaker flag.
func (m *Manager) SetPaused(module string, paused bool) error {
	if !paused {
		err := m.db.Delete(pauseKey(module))
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return m.put(pauseKey(module), true)
}

// IsPaused reports whether the module's circuit breaker is engaged. It
// implements the PauseView the engines guard on.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.get(pauseKey(module), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}
