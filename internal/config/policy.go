package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/librarydesk/lending-engine/lending"
)

// policyFile is the YAML layout of a lending policy override. Omitted keys keep their defaults.
type policyFile struct {
	LoanPeriodDays       *int           `yaml:"loan_period_days"`
	DailyFine            *string        `yaml:"daily_fine"`
	BorrowLimits         map[string]int `yaml:"borrow_limits"`
	DefaultBorrowLimit   *int           `yaml:"default_borrow_limit"`
	MembershipTermMonths *int           `yaml:"membership_term_months"`
}

// LoadPolicy returns lending.DefaultPolicy overridden by the YAML file at path.
// An empty path yields the default policy.
//
//	loan_period_days: 21
//	daily_fine: "0.25"
//	borrow_limits:
//	  faculty: 15
func LoadPolicy(path string) (lending.Policy, error) {
	policy := lending.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return lending.Policy{}, fmt.Errorf("%w: policy file: %v", ErrInvalidConfig, err)
	}

	return ParsePolicy(data)
}

// ParsePolicy applies a YAML policy document to lending.DefaultPolicy and validates the result.
func ParsePolicy(data []byte) (lending.Policy, error) {
	policy := lending.DefaultPolicy()

	var overrides policyFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return lending.Policy{}, fmt.Errorf("%w: policy file: %v", ErrInvalidConfig, err)
	}

	if overrides.LoanPeriodDays != nil {
		policy.LoanPeriodDays = *overrides.LoanPeriodDays
	}

	if overrides.DailyFine != nil {
		fine, err := lending.ParseMoney(*overrides.DailyFine)
		if err != nil {
			return lending.Policy{}, fmt.Errorf("%w: daily_fine: %v", ErrInvalidConfig, err)
		}
		policy.DailyFine = fine
	}

	for name, limit := range overrides.BorrowLimits {
		membershipType, known := lending.ParseMembershipType(name)
		if !known {
			return lending.Policy{}, fmt.Errorf("%w: borrow_limits: unknown membership type %q", ErrInvalidConfig, name)
		}
		policy.BorrowLimits[membershipType] = limit
	}

	if overrides.DefaultBorrowLimit != nil {
		policy.DefaultBorrowLimit = *overrides.DefaultBorrowLimit
	}

	if overrides.MembershipTermMonths != nil {
		policy.MembershipTermMonths = *overrides.MembershipTermMonths
	}

	if err := policy.Validate(); err != nil {
		return lending.Policy{}, errors.Join(ErrInvalidConfig, err)
	}

	return policy, nil
}
