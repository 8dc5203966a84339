package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/database/models"
	"tillpoint/internal/settlement"
)

// Store is an in-memory settlement.Store with real transaction
// semantics: WithinTx snapshots the state and restores it when the
// callback fails, so rollback behaviour is observable in tests.
type Store struct {
	mu   sync.Mutex
	st   *state
	inTx bool
}

type state struct {
	nextID int64

	pos            map[int64]models.PointOfSale
	bankAccounts   map[int64]models.BankAccount
	charges        map[int64]models.Charge
	orders         map[int64]models.Order
	orderLines     map[int64]models.OrderLine
	payments       map[int64]models.Payment
	creditMemos    map[int64]models.CreditMemo
	allocations    map[int64]models.Allocation
	allocLines     map[int64]models.AllocationLine
	statements     map[int64]models.BankStatement
	statementLines map[int64]models.BankStatementLine
	rates          map[int64]models.ConversionRate
	sellers        map[int64]models.SellerAllocation
	sequences      map[string]int64
}

func New() *Store {
	return &Store{st: &state{
		pos:            map[int64]models.PointOfSale{},
		bankAccounts:   map[int64]models.BankAccount{},
		charges:        map[int64]models.Charge{},
		orders:         map[int64]models.Order{},
		orderLines:     map[int64]models.OrderLine{},
		payments:       map[int64]models.Payment{},
		creditMemos:    map[int64]models.CreditMemo{},
		allocations:    map[int64]models.Allocation{},
		allocLines:     map[int64]models.AllocationLine{},
		statements:     map[int64]models.BankStatement{},
		statementLines: map[int64]models.BankStatementLine{},
		rates:          map[int64]models.ConversionRate{},
		sellers:        map[int64]models.SellerAllocation{},
		sequences:      map[string]int64{},
	}}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		nextID:         st.nextID,
		pos:            copyMap(st.pos),
		bankAccounts:   copyMap(st.bankAccounts),
		charges:        copyMap(st.charges),
		orders:         copyMap(st.orders),
		orderLines:     copyMap(st.orderLines),
		payments:       copyMap(st.payments),
		creditMemos:    copyMap(st.creditMemos),
		allocations:    copyMap(st.allocations),
		allocLines:     copyMap(st.allocLines),
		statements:     copyMap(st.statements),
		statementLines: copyMap(st.statementLines),
		rates:          copyMap(st.rates),
		sellers:        copyMap(st.sellers),
		sequences:      copyMap(st.sequences),
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTx(_ context.Context, fn func(tx settlement.Store) error) error {
	if s.inTx {
		// nested units join the outer transaction
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	txStore := &Store{st: s.st, inTx: true}
	if err := fn(txStore); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.st.nextID++
	return s.st.nextID
}

// --- seeding helpers for tests ---

func (s *Store) AddPOS(p models.PointOfSale) int64 {
	defer s.lock()()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	s.st.pos[p.ID] = p
	return p.ID
}

func (s *Store) AddBankAccount(a models.BankAccount) int64 {
	defer s.lock()()
	if a.ID == 0 {
		a.ID = s.nextID()
	}
	s.st.bankAccounts[a.ID] = a
	return a.ID
}

func (s *Store) AddCharge(c models.Charge) int64 {
	defer s.lock()()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	s.st.charges[c.ID] = c
	return c.ID
}

func (s *Store) AddRate(r models.ConversionRate) int64 {
	defer s.lock()()
	if r.ID == 0 {
		r.ID = s.nextID()
	}
	s.st.rates[r.ID] = r
	return r.ID
}

func (s *Store) AddOrder(o models.Order) int64 {
	defer s.lock()()
	if o.ID == 0 {
		o.ID = s.nextID()
	}
	s.st.orders[o.ID] = o
	return o.ID
}

func (s *Store) AddOrderLine(l models.OrderLine) int64 {
	defer s.lock()()
	if l.ID == 0 {
		l.ID = s.nextID()
	}
	s.st.orderLines[l.ID] = l
	return l.ID
}

func (s *Store) AddPayment(p models.Payment) int64 {
	defer s.lock()()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	s.st.payments[p.ID] = p
	return p.ID
}

func (s *Store) AddSellerAllocation(sa models.SellerAllocation) int64 {
	defer s.lock()()
	if sa.ID == 0 {
		sa.ID = s.nextID()
	}
	s.st.sellers[sa.ID] = sa
	return sa.ID
}

// CountAllocations reports how many allocation headers exist.
func (s *Store) CountAllocations() int {
	defer s.lock()()
	return len(s.st.allocations)
}

// AllocationLines returns all lines of every allocation, for
// inspecting balances in tests.
func (s *Store) AllocationLines() []models.AllocationLine {
	defer s.lock()()
	var out []models.AllocationLine
	for _, l := range s.st.allocLines {
		out = append(out, l)
	}
	return out
}

// CountCreditMemos reports how many credit memo documents exist.
func (s *Store) CountCreditMemos() int {
	defer s.lock()()
	return len(s.st.creditMemos)
}

func (s *Store) StatementLineCount(statementID int64) int {
	defer s.lock()()
	n := 0
	for _, l := range s.st.statementLines {
		if l.StatementID == statementID {
			n++
		}
	}
	return n
}

func (s *Store) OpenStatementCount(posID int64) int {
	defer s.lock()()
	n := 0
	for _, st := range s.st.statements {
		if st.PosID == posID && st.DocStatus == models.DocStatusDrafted {
			n++
		}
	}
	return n
}

// --- settlement.Store ---

func (s *Store) GetPOS(_ context.Context, id int64) (*models.PointOfSale, error) {
	defer s.lock()()
	p, ok := s.st.pos[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetBankAccount(_ context.Context, id int64) (*models.BankAccount, error) {
	defer s.lock()()
	a, ok := s.st.bankAccounts[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetCharge(_ context.Context, id int64) (*models.Charge, error) {
	defer s.lock()()
	c, ok := s.st.charges[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	defer s.lock()()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return &o, nil
}

func (s *Store) SaveOrder(_ context.Context, o *models.Order) error {
	defer s.lock()()
	if o.ID == 0 {
		o.ID = s.nextID()
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = time.Now()
	s.st.orders[o.ID] = *o
	return nil
}

func (s *Store) ListOrderLines(_ context.Context, orderID int64) ([]models.OrderLine, error) {
	defer s.lock()()
	var out []models.OrderLine
	for _, l := range s.st.orderLines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	sortByLineNo(out)
	return out, nil
}

func (s *Store) SaveOrderLine(_ context.Context, l *models.OrderLine) error {
	defer s.lock()()
	if l.ID == 0 {
		l.ID = s.nextID()
		l.CreatedAt = time.Now()
	}
	l.UpdatedAt = time.Now()
	s.st.orderLines[l.ID] = *l
	return nil
}

func (s *Store) DeleteOrderLine(_ context.Context, id int64) error {
	defer s.lock()()
	delete(s.st.orderLines, id)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id int64) (*models.Payment, error) {
	defer s.lock()()
	p, ok := s.st.payments[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	s.attachCreditMemo(&p)
	return &p, nil
}

func (s *Store) attachCreditMemo(p *models.Payment) {
	if p.CreditMemoID != nil {
		if cm, ok := s.st.creditMemos[*p.CreditMemoID]; ok {
			p.CreditMemo = &cm
		}
	}
}

func (s *Store) SavePayment(_ context.Context, p *models.Payment) error {
	defer s.lock()()
	if p.ID == 0 {
		p.ID = s.nextID()
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	stored := *p
	stored.CreditMemo = nil
	stored.RelatedPayment = nil
	s.st.payments[p.ID] = stored
	return nil
}

func (s *Store) ListOrderPayments(_ context.Context, orderID int64) ([]models.Payment, error) {
	defer s.lock()()
	var out []models.Payment
	for _, p := range s.st.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			s.attachCreditMemo(&p)
			out = append(out, p)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *Store) DailyRefundTotal(_ context.Context, posID, sellerID int64, date string) (decimal.Decimal, error) {
	defer s.lock()()
	total := decimal.Zero
	for _, p := range s.st.payments {
		if p.PosID != posID || p.SellerID != sellerID || p.IsReceipt || p.OrderID == nil {
			continue
		}
		if p.DocStatus != models.DocStatusCompleted && p.DocStatus != models.DocStatusClosed {
			continue
		}
		if p.TransactionDate.Format("2006-01-02") != date {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (s *Store) GetCreditMemo(_ context.Context, id int64) (*models.CreditMemo, error) {
	defer s.lock()()
	cm, ok := s.st.creditMemos[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return &cm, nil
}

func (s *Store) SaveCreditMemo(_ context.Context, cm *models.CreditMemo) error {
	defer s.lock()()
	if cm.ID == 0 {
		cm.ID = s.nextID()
		cm.CreatedAt = time.Now()
	}
	cm.UpdatedAt = time.Now()
	s.st.creditMemos[cm.ID] = *cm
	return nil
}

func (s *Store) CreateAllocation(_ context.Context, a *models.Allocation) error {
	defer s.lock()()
	if a.ID == 0 {
		a.ID = s.nextID()
		a.CreatedAt = time.Now()
	}
	for i := range a.Lines {
		a.Lines[i].ID = s.nextID()
		a.Lines[i].AllocationID = a.ID
		s.st.allocLines[a.Lines[i].ID] = a.Lines[i]
	}
	header := *a
	header.Lines = nil
	s.st.allocations[a.ID] = header
	return nil
}

func (s *Store) SaveAllocation(_ context.Context, a *models.Allocation) error {
	defer s.lock()()
	header := *a
	header.Lines = nil
	s.st.allocations[a.ID] = header
	return nil
}

func (s *Store) FindOpenStatement(_ context.Context, posID int64, date string) (*models.BankStatement, error) {
	defer s.lock()()
	for _, st := range s.st.statements {
		if st.PosID == posID && st.StatementDate == date && st.DocStatus == models.DocStatusDrafted {
			out := st
			return &out, nil
		}
	}
	return nil, settlement.ErrNotFound
}

func (s *Store) CreateStatement(_ context.Context, st *models.BankStatement) error {
	defer s.lock()()
	for _, existing := range s.st.statements {
		if existing.PosID == st.PosID && existing.StatementDate == st.StatementDate {
			return settlement.ErrDuplicate
		}
	}
	if st.ID == 0 {
		st.ID = s.nextID()
		st.CreatedAt = time.Now()
	}
	s.st.statements[st.ID] = *st
	return nil
}

func (s *Store) GetStatement(_ context.Context, id int64) (*models.BankStatement, error) {
	defer s.lock()()
	st, ok := s.st.statements[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	for _, l := range s.st.statementLines {
		if l.StatementID == id {
			st.Lines = append(st.Lines, l)
		}
	}
	return &st, nil
}

func (s *Store) SaveStatement(_ context.Context, st *models.BankStatement) error {
	defer s.lock()()
	stored := *st
	stored.Lines = nil
	s.st.statements[st.ID] = stored
	return nil
}

func (s *Store) FindStatementLine(_ context.Context, statementID, paymentID int64) (*models.BankStatementLine, error) {
	defer s.lock()()
	for _, l := range s.st.statementLines {
		if l.StatementID == statementID && l.PaymentID == paymentID {
			out := l
			return &out, nil
		}
	}
	return nil, settlement.ErrNotFound
}

func (s *Store) AddStatementLine(_ context.Context, line *models.BankStatementLine) error {
	defer s.lock()()
	for _, l := range s.st.statementLines {
		if l.StatementID == line.StatementID && l.PaymentID == line.PaymentID {
			return settlement.ErrDuplicate
		}
	}
	if line.ID == 0 {
		line.ID = s.nextID()
		line.CreatedAt = time.Now()
	}
	s.st.statementLines[line.ID] = *line
	return nil
}

func (s *Store) FindConversionRate(_ context.Context, from, to, rateType string, asOf time.Time) (*models.ConversionRate, error) {
	defer s.lock()()
	for _, r := range s.st.rates {
		if r.FromCurrency == from && r.ToCurrency == to && r.RateType == rateType &&
			!asOf.Before(r.ValidFrom) && !asOf.After(r.ValidTo) {
			out := r
			return &out, nil
		}
	}
	return nil, settlement.ErrNotFound
}

func (s *Store) FindSellerAllocation(_ context.Context, posID, userID int64) (*models.SellerAllocation, error) {
	defer s.lock()()
	for _, sa := range s.st.sellers {
		if sa.PosID == posID && sa.UserID == userID {
			out := sa
			return &out, nil
		}
	}
	return nil, settlement.ErrNotFound
}

func (s *Store) ListSupervisorAllocations(_ context.Context, posID int64) ([]models.SellerAllocation, error) {
	defer s.lock()()
	var out []models.SellerAllocation
	for _, sa := range s.st.sellers {
		if sa.PosID == posID && sa.IsSupervisor && sa.IsActive {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (s *Store) ListUserAllocations(_ context.Context, userID int64) ([]models.SellerAllocation, error) {
	defer s.lock()()
	var out []models.SellerAllocation
	for _, sa := range s.st.sellers {
		if sa.UserID == userID && sa.IsActive {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (s *Store) SaveSellerAllocation(_ context.Context, sa *models.SellerAllocation) error {
	defer s.lock()()
	if sa.ID == 0 {
		sa.ID = s.nextID()
		sa.CreatedAt = time.Now()
	}
	sa.UpdatedAt = time.Now()
	s.st.sellers[sa.ID] = *sa
	return nil
}

func (s *Store) NextDocumentNumber(_ context.Context, posID int64, docType string) (string, error) {
	defer s.lock()()
	key := fmt.Sprintf("%d:%s", posID, docType)
	s.st.sequences[key]++
	return fmt.Sprintf("%s-%d-%06d", docType, posID, s.st.sequences[key]), nil
}

func sortByLineNo(lines []models.OrderLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineNo < lines[j].LineNo })
}

func sortByCreated(payments []models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}
