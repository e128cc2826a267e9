// internal/domain/policy/entity.go
package policy

import (
	"errors"
	"time"
)

// FirstPolicyNumber is assigned when the store holds no policies.
const FirstPolicyNumber int64 = 1001

var ErrAlreadyCancelled = errors.New("policy already cancelled")

type Policy struct {
	PolicyNumber  int64      `json:"policyNumber"`
	CustomerName  string     `json:"customerName"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       time.Time  `json:"endDate"`
	IsCancelled   bool       `json:"isCancelled"`
	CancelledDate *time.Time `json:"cancelledDate"`

	// Optimistic concurrency token, bumped by every successful update.
	Version int64 `json:"-"`

	// Timestamps
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Cancel marks the policy inactive as of at. A policy can only be cancelled once.
func (p *Policy) Cancel(at time.Time) error {
	if p.IsCancelled {
		return ErrAlreadyCancelled
	}

	at = at.UTC()
	p.IsCancelled = true
	p.CancelledDate = &at
	return nil
}

// IsActive reports whether the policy is in force at t.
func (p *Policy) IsActive(t time.Time) bool {
	if p.IsCancelled {
		return false
	}
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// NextPolicyNumber returns the number following max, or FirstPolicyNumber when the
// store is empty.
func NextPolicyNumber(max int64, ok bool) int64 {
	if !ok {
		return FirstPolicyNumber
	}
	return max + 1
}
