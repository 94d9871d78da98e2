package agent

import (
	"context"
	"time"

	"github.com/jmerrifield20/moneysim/internal/ledger"
)

// Role identifies an agent behaviour.
type Role string

const (
	RoleSalaryPayer      Role = "salary-payer"
	RoleHouseholdSpender Role = "household-spender"
	RoleCashSpender      Role = "cash-spender"
	RoleMerchant         Role = "merchant"
	RoleEmployer         Role = "employer"
)

// Roles lists every role in the order the driver constructs them.
var Roles = []Role{RoleMerchant, RoleHouseholdSpender, RoleCashSpender, RoleSalaryPayer, RoleEmployer}

// DefaultIntervals is the pause between cycles for each role.
var DefaultIntervals = map[Role]time.Duration{
	RoleSalaryPayer:      200 * time.Millisecond,
	RoleHouseholdSpender: 300 * time.Millisecond,
	RoleCashSpender:      400 * time.Millisecond,
	RoleMerchant:         500 * time.Millisecond,
	RoleEmployer:         500 * time.Millisecond,
}

// SalaryPayer receives a salary and pays it out: housekeeping money to the
// household spender, the utility bill, and pocket money to the kids.
type SalaryPayer struct {
	actor
	household ledger.AccountID
	utility   ledger.AccountID
	kids      ledger.AccountID
}

// NewSalaryPayer opens the salary payer's account.
func NewSalaryPayer(deps Deps, household, utility, kids ledger.AccountID) *SalaryPayer {
	return &SalaryPayer{
		actor:     newActor(deps, RoleSalaryPayer, "Homer"),
		household: household,
		utility:   utility,
		kids:      kids,
	}
}

// Act implements Agent.
func (h *SalaryPayer) Act(_ context.Context) error {
	return h.run(
		h.transfer("pay_household", h.household, 500,
			"transferred 500 to household", "failed to transfer money to household"),
		h.transfer("pay_utility", h.utility, 400,
			"paid 400 for electricity", "failed to pay for electricity"),
		h.transfer("pay_kids", h.kids, 100,
			"transferred 100 to the kids", "failed to transfer money to the kids"),
	)
}

// HouseholdSpender buys groceries from the merchant.
type HouseholdSpender struct {
	actor
	merchant ledger.AccountID
}

// NewHouseholdSpender opens the household spender's account.
func NewHouseholdSpender(deps Deps, merchant ledger.AccountID) *HouseholdSpender {
	return &HouseholdSpender{
		actor:    newActor(deps, RoleHouseholdSpender, "Marge"),
		merchant: merchant,
	}
}

// Act implements Agent.
func (m *HouseholdSpender) Act(_ context.Context) error {
	return m.run(
		m.transfer("buy_groceries", m.merchant, 500,
			"paid 500 for groceries", "failed to pay for groceries"),
	)
}

// CashSpender withdraws pocket money and spends it as cash at the merchant's
// store. The cash leaves the banking system until the merchant deposits it.
type CashSpender struct {
	actor
	merchant ledger.AccountID
}

// NewCashSpender opens the cash spender's account.
func NewCashSpender(deps Deps, merchant ledger.AccountID) *CashSpender {
	return &CashSpender{
		actor:    newActor(deps, RoleCashSpender, "Bart & Lisa"),
		merchant: merchant,
	}
}

// Act implements Agent.
func (b *CashSpender) Act(_ context.Context) error {
	spend := b.withdraw("spend_cash", 100,
		"spent 100 at the store", "failed to spend money at the store")
	spend.peer = b.merchant
	return b.run(spend)
}

// Merchant pays the utility bill and banks the cash taken over the counter.
type Merchant struct {
	actor
	utility ledger.AccountID
}

// NewMerchant opens the merchant's account.
func NewMerchant(deps Deps, utility ledger.AccountID) *Merchant {
	return &Merchant{
		actor:   newActor(deps, RoleMerchant, "Apu"),
		utility: utility,
	}
}

// Act implements Agent.
func (a *Merchant) Act(_ context.Context) error {
	return a.run(
		a.transfer("pay_utility", a.utility, 400,
			"paid 400 for electricity", "failed to pay for electricity"),
		a.deposit("bank_takings", 200,
			"deposited 200 to bank account", "failed to deposit money to bank account"),
	)
}

// Employer banks cash and pays the salary payer's wage.
type Employer struct {
	actor
	employee ledger.AccountID
}

// NewEmployer opens the employer's account.
func NewEmployer(deps Deps, employee ledger.AccountID) *Employer {
	return &Employer{
		actor:    newActor(deps, RoleEmployer, "Mr. Burns"),
		employee: employee,
	}
}

// Act implements Agent.
func (e *Employer) Act(_ context.Context) error {
	return e.run(
		e.deposit("bank_cash", 1000,
			"deposited 1000", "failed to deposit 1000"),
		e.transfer("pay_salary", e.employee, 1000,
			"paid 1000 salary", "failed to pay salary"),
	)
}
