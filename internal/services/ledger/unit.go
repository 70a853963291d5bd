package ledger

import (
	"fmt"
	"sort"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"
)

type balanceKey struct {
	accountID string
	category  models.Category
}

// unit is the working set of one atomic unit: the locked accounts and
// balances, the entries appended so far and which records must be written
// back before the unit ends.
type unit struct {
	tx  repositories.LedgerTx
	now time.Time

	accounts map[string]*models.Account
	balances map[balanceKey]*models.AccountBalance

	dirtyAccounts map[string]bool
	dirtyBalances map[balanceKey]bool
	entries       []models.LedgerEntry
}

func newUnit(tx repositories.LedgerTx, now time.Time) *unit {
	return &unit{
		tx:            tx,
		now:           now,
		accounts:      make(map[string]*models.Account),
		balances:      make(map[balanceKey]*models.AccountBalance),
		dirtyAccounts: make(map[string]bool),
		dirtyBalances: make(map[balanceKey]bool),
	}
}

// lock reads every account and balance named by keys. Accounts are read in
// ascending id order and balances in (id, category) order, so two units
// touching the same accounts always acquire row locks in the same sequence.
func (u *unit) lock(keys []balanceKey) error {
	ids := make([]string, 0, len(keys))
	seen := make(map[string]bool)
	for _, k := range keys {
		if !seen[k.accountID] {
			seen[k.accountID] = true
			ids = append(ids, k.accountID)
		}
	}
	sort.Strings(ids)

	sorted := append([]balanceKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].accountID != sorted[j].accountID {
			return sorted[i].accountID < sorted[j].accountID
		}
		return sorted[i].category < sorted[j].category
	})

	for _, id := range ids {
		if _, ok := u.accounts[id]; ok {
			continue
		}
		account, err := u.tx.ReadAccount(id)
		if err != nil {
			return err
		}
		u.accounts[id] = account
	}
	for _, k := range sorted {
		if _, ok := u.balances[k]; ok {
			continue
		}
		balance, err := u.tx.ReadBalance(k.accountID, k.category)
		if err != nil {
			return err
		}
		u.balances[k] = balance
	}
	return nil
}

func (u *unit) account(id string) *models.Account {
	return u.accounts[id]
}

func (u *unit) balance(id string, category models.Category) *models.AccountBalance {
	return u.balances[balanceKey{accountID: id, category: category}]
}

// append records an entry against an already-mutated balance. The snapshot is
// taken from the balance as it stands, so memo entries carry the unchanged
// balance.
func (u *unit) append(balance *models.AccountBalance, kind models.EntryKind, amount models.Amount, status string, tmpl EntryTemplate) (models.LedgerEntry, error) {
	account := u.accounts[balance.AccountID]
	account.LastSeq++

	entry := models.LedgerEntry{
		AccountID:    account.ID,
		Seq:          account.LastSeq,
		Category:     balance.Category,
		Kind:         kind,
		Amount:       amount,
		Currency:     account.Currency,
		Description:  tmpl.Description,
		Reference:    tmpl.Reference,
		Status:       status,
		BalanceAfter: balance.Balance,
		Metadata:     tmpl.Metadata,
		CreatedAt:    u.now,
	}
	if err := u.tx.AppendEntry(&entry); err != nil {
		return models.LedgerEntry{}, err
	}

	u.dirtyAccounts[account.ID] = true
	u.dirtyBalances[balanceKey{accountID: balance.AccountID, category: balance.Category}] = true
	u.entries = append(u.entries, entry)
	return entry, nil
}

// flush writes back every touched balance and account in lock order.
func (u *unit) flush() error {
	keys := make([]balanceKey, 0, len(u.dirtyBalances))
	for k := range u.dirtyBalances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].accountID != keys[j].accountID {
			return keys[i].accountID < keys[j].accountID
		}
		return keys[i].category < keys[j].category
	})
	for _, k := range keys {
		b := u.balances[k]
		if b.Balance < 0 || b.Held < 0 || b.Held > b.Balance {
			return fmt.Errorf("%w: balance %s/%s would become inconsistent", ErrInvalidChange, k.accountID, k.category)
		}
		if err := u.tx.WriteBalance(b); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(u.dirtyAccounts))
	for id := range u.dirtyAccounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := u.tx.WriteAccount(u.accounts[id]); err != nil {
			return err
		}
	}
	return nil
}

// checkDebit rejects debits against accounts that are not active.
func checkDebit(account *models.Account) error {
	if !account.IsActive() {
		return fmt.Errorf("%w: account %s is %s", ErrAccountInactive, account.ID, account.Status)
	}
	return nil
}

// checkCredit rejects credits to closed accounts; frozen accounts still receive funds.
func checkCredit(account *models.Account) error {
	if account.Status == models.AccountStatusClosed {
		return fmt.Errorf("%w: account %s is closed", ErrAccountInactive, account.ID)
	}
	return nil
}

func insufficient(balance *models.AccountBalance, requested models.Amount) error {
	return fmt.Errorf("%w: account %s/%s available %s, requested %s",
		ErrInsufficientFunds, balance.AccountID, balance.Category, balance.Available(), requested)
}
