// Package memory provides in-process implementations of the repository
// interfaces. They keep the same atomic-unit contract as the postgres store
// using optimistic version checks at commit, and back unit tests and local
// runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/google/uuid"
)

type balanceKey struct {
	account  string
	category models.Category
}

type entryKey struct {
	account   string
	category  models.Category
	reference string
	status    string
}

// LedgerStore implements repositories.LedgerRepository.
type LedgerStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	balances map[balanceKey]models.AccountBalance
	entries  []models.LedgerEntry
	entryIdx map[entryKey]struct{}
	holds    map[string]models.Hold
	fault    func(op string) error
}

var _ repositories.LedgerRepository = (*LedgerStore)(nil)

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts: make(map[string]models.Account),
		balances: make(map[balanceKey]models.AccountBalance),
		entryIdx: make(map[entryKey]struct{}),
		holds:    make(map[string]models.Hold),
	}
}

// SetFault installs a hook consulted before every write inside an atomic unit.
// A non-nil error from the hook fails that write. Pass nil to clear it.
func (s *LedgerStore) SetFault(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *LedgerStore) checkFault(op string) error {
	s.mu.RLock()
	fn := s.fault
	s.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(op)
}

func (s *LedgerStore) WithAtomicUnit(ctx context.Context, fn func(tx repositories.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrTransactionAborted, err)
	}
	tx := newLedgerTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrTransactionAborted, err)
	}
	if err := s.checkFault("commit"); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *LedgerStore) commit(tx *ledgerTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range tx.accountReads {
		cur, ok := s.accounts[id]
		if !ok || cur.Version != v {
			return fmt.Errorf("%w: account %s changed concurrently", repositories.ErrTransactionAborted, id)
		}
	}
	for k, v := range tx.balanceReads {
		cur, ok := s.balances[k]
		if !ok || cur.Version != v {
			return fmt.Errorf("%w: balance %s/%s changed concurrently", repositories.ErrTransactionAborted, k.account, k.category)
		}
	}
	for ref, v := range tx.holdReads {
		cur, ok := s.holds[ref]
		if !ok || cur.Version != v {
			return fmt.Errorf("%w: hold %s changed concurrently", repositories.ErrTransactionAborted, ref)
		}
	}
	for id := range tx.newAccounts {
		if _, ok := s.accounts[id]; ok {
			return fmt.Errorf("%w: account %s", repositories.ErrDuplicateReference, id)
		}
	}
	for ref := range tx.newHolds {
		if _, ok := s.holds[ref]; ok {
			return fmt.Errorf("%w: hold %s", repositories.ErrDuplicateReference, ref)
		}
	}
	for _, e := range tx.entries {
		if _, ok := s.entryIdx[keyOf(&e)]; ok {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicateReference, e.Reference)
		}
	}

	for id, a := range tx.accounts {
		s.accounts[id] = *a
	}
	for k, b := range tx.balances {
		s.balances[k] = *b
	}
	for ref, h := range tx.holds {
		s.holds[ref] = *h
	}
	for _, e := range tx.entries {
		s.entries = append(s.entries, e)
		s.entryIdx[keyOf(&e)] = struct{}{}
	}
	return nil
}

func keyOf(e *models.LedgerEntry) entryKey {
	return entryKey{account: e.AccountID, category: e.Category, reference: e.Reference, status: e.Status}
}

func (s *LedgerStore) ReadAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrAccountNotFound, id)
	}
	return &a, nil
}

func (s *LedgerStore) ReadBalances(ctx context.Context, accountID string) ([]models.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrAccountNotFound, accountID)
	}
	var out []models.AccountBalance
	for k, b := range s.balances {
		if k.account == accountID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *LedgerStore) ReadEntries(ctx context.Context, f repositories.EntryFilter) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEntries(s.entries, f), nil
}

func (s *LedgerStore) CountEntries(ctx context.Context, f repositories.EntryFilter) (int64, error) {
	f.Limit, f.Offset = 0, 0
	entries, _ := s.ReadEntries(ctx, f)
	return int64(len(entries)), nil
}

func (s *LedgerStore) ReadHold(ctx context.Context, reference string) (*models.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrHoldNotFound, reference)
	}
	return &h, nil
}

func (s *LedgerStore) ReadHolds(ctx context.Context, accountID, status string) ([]models.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterHolds(s.holds, nil, accountID, status), nil
}

func (s *LedgerStore) ListAccounts(ctx context.Context, ownerID string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Account
	for _, a := range s.accounts {
		if ownerID == "" || a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matchEntry(e *models.LedgerEntry, f repositories.EntryFilter) bool {
	if f.AccountID != "" && e.AccountID != f.AccountID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Reference != "" && e.Reference != f.Reference {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

func filterEntries(all []models.LedgerEntry, f repositories.EntryFilter) []models.LedgerEntry {
	var out []models.LedgerEntry
	for i := range all {
		if matchEntry(&all[i], f) {
			out = append(out, all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		if f.Ascending {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Seq > out[j].Seq
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func filterHolds(committed map[string]models.Hold, overlay map[string]*models.Hold, accountID, status string) []models.Hold {
	var out []models.Hold
	seen := make(map[string]bool)
	for ref, h := range overlay {
		seen[ref] = true
		if (accountID == "" || h.AccountID == accountID) && (status == "" || h.Status == status) {
			out = append(out, *h)
		}
	}
	for ref, h := range committed {
		if seen[ref] {
			continue
		}
		if (accountID == "" || h.AccountID == accountID) && (status == "" || h.Status == status) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ledgerTx buffers writes until commit and remembers the version of every
// record it read so the commit can detect interleaved writers.
type ledgerTx struct {
	s *LedgerStore

	accountReads map[string]int64
	balanceReads map[balanceKey]int64
	holdReads    map[string]int64

	accounts    map[string]*models.Account
	newAccounts map[string]bool
	balances    map[balanceKey]*models.AccountBalance
	holds       map[string]*models.Hold
	newHolds    map[string]bool
	entries     []models.LedgerEntry
}

func newLedgerTx(s *LedgerStore) *ledgerTx {
	return &ledgerTx{
		s:            s,
		accountReads: make(map[string]int64),
		balanceReads: make(map[balanceKey]int64),
		holdReads:    make(map[string]int64),
		accounts:     make(map[string]*models.Account),
		newAccounts:  make(map[string]bool),
		balances:     make(map[balanceKey]*models.AccountBalance),
		holds:        make(map[string]*models.Hold),
		newHolds:     make(map[string]bool),
	}
}

func (t *ledgerTx) ReadAccount(id string) (*models.Account, error) {
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	t.s.mu.RLock()
	a, ok := t.s.accounts[id]
	t.s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrAccountNotFound, id)
	}
	if _, seen := t.accountReads[id]; !seen {
		t.accountReads[id] = a.Version
	}
	return &a, nil
}

func (t *ledgerTx) ReadBalance(accountID string, category models.Category) (*models.AccountBalance, error) {
	k := balanceKey{account: accountID, category: category}
	if b, ok := t.balances[k]; ok {
		cp := *b
		return &cp, nil
	}
	t.s.mu.RLock()
	b, ok := t.s.balances[k]
	t.s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", repositories.ErrAccountNotFound, accountID, category)
	}
	if _, seen := t.balanceReads[k]; !seen {
		t.balanceReads[k] = b.Version
	}
	return &b, nil
}

func (t *ledgerTx) ReadEntries(f repositories.EntryFilter) ([]models.LedgerEntry, error) {
	t.s.mu.RLock()
	all := make([]models.LedgerEntry, 0, len(t.s.entries)+len(t.entries))
	all = append(all, t.s.entries...)
	t.s.mu.RUnlock()
	all = append(all, t.entries...)
	return filterEntries(all, f), nil
}

func (t *ledgerTx) ReadHold(reference string) (*models.Hold, error) {
	if h, ok := t.holds[reference]; ok {
		cp := *h
		return &cp, nil
	}
	t.s.mu.RLock()
	h, ok := t.s.holds[reference]
	t.s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrHoldNotFound, reference)
	}
	if _, seen := t.holdReads[reference]; !seen {
		t.holdReads[reference] = h.Version
	}
	return &h, nil
}

func (t *ledgerTx) ReadHolds(accountID, status string) ([]models.Hold, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return filterHolds(t.s.holds, t.holds, accountID, status), nil
}

func (t *ledgerTx) CreateAccount(account *models.Account, balances []models.AccountBalance) error {
	if err := t.s.checkFault("create-account"); err != nil {
		return err
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, ok := t.accounts[account.ID]; ok {
		return fmt.Errorf("%w: account %s", repositories.ErrDuplicateReference, account.ID)
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	cp := *account
	t.accounts[account.ID] = &cp
	t.newAccounts[account.ID] = true
	for i := range balances {
		balances[i].AccountID = account.ID
		balances[i].UpdatedAt = now
		b := balances[i]
		t.balances[balanceKey{account: account.ID, category: b.Category}] = &b
	}
	return nil
}

func (t *ledgerTx) WriteAccount(account *models.Account) error {
	if err := t.s.checkFault("write-account"); err != nil {
		return err
	}
	current, err := t.ReadAccount(account.ID)
	if err != nil {
		return err
	}
	if current.Version != account.Version {
		return fmt.Errorf("%w: account %s changed concurrently", repositories.ErrTransactionAborted, account.ID)
	}
	account.Version++
	account.UpdatedAt = time.Now()
	cp := *account
	t.accounts[account.ID] = &cp
	return nil
}

func (t *ledgerTx) WriteBalance(balance *models.AccountBalance) error {
	if err := t.s.checkFault("write-balance"); err != nil {
		return err
	}
	current, err := t.ReadBalance(balance.AccountID, balance.Category)
	if err != nil {
		return err
	}
	if current.Version != balance.Version {
		return fmt.Errorf("%w: balance %s/%s changed concurrently", repositories.ErrTransactionAborted, balance.AccountID, balance.Category)
	}
	if balance.Balance < 0 || balance.Held < 0 || balance.Held > balance.Balance {
		return fmt.Errorf("balance %s/%s would violate its constraints", balance.AccountID, balance.Category)
	}
	balance.Version++
	balance.UpdatedAt = time.Now()
	cp := *balance
	t.balances[balanceKey{account: balance.AccountID, category: balance.Category}] = &cp
	return nil
}

func (t *ledgerTx) AppendEntry(entry *models.LedgerEntry) error {
	if err := t.s.checkFault("append-entry"); err != nil {
		return err
	}
	k := keyOf(entry)
	for i := range t.entries {
		if keyOf(&t.entries[i]) == k {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicateReference, entry.Reference)
		}
	}
	t.s.mu.RLock()
	_, dup := t.s.entryIdx[k]
	t.s.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: %s", repositories.ErrDuplicateReference, entry.Reference)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	t.entries = append(t.entries, *entry)
	return nil
}

func (t *ledgerTx) CreateHold(hold *models.Hold) error {
	if err := t.s.checkFault("create-hold"); err != nil {
		return err
	}
	if _, ok := t.holds[hold.Reference]; ok {
		return fmt.Errorf("%w: hold %s", repositories.ErrDuplicateReference, hold.Reference)
	}
	t.s.mu.RLock()
	_, dup := t.s.holds[hold.Reference]
	t.s.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: hold %s", repositories.ErrDuplicateReference, hold.Reference)
	}
	if hold.ID == "" {
		hold.ID = uuid.NewString()
	}
	now := time.Now()
	hold.CreatedAt, hold.UpdatedAt = now, now
	cp := *hold
	t.holds[hold.Reference] = &cp
	t.newHolds[hold.Reference] = true
	return nil
}

func (t *ledgerTx) WriteHold(hold *models.Hold) error {
	if err := t.s.checkFault("write-hold"); err != nil {
		return err
	}
	current, err := t.ReadHold(hold.Reference)
	if err != nil {
		return err
	}
	if current.Version != hold.Version {
		return fmt.Errorf("%w: hold %s changed concurrently", repositories.ErrTransactionAborted, hold.Reference)
	}
	hold.Version++
	hold.UpdatedAt = time.Now()
	cp := *hold
	t.holds[hold.Reference] = &cp
	return nil
}
