// internal/repository/sqlite/policy.go
package sqlite

import (
	"time"

	"policy-service/internal/domain/policy"
)

type policyRecord struct {
	PolicyNumber  int64     `gorm:"primaryKey;autoIncrement:false"`
	CustomerName  string    `gorm:"not null"`
	StartDate     time.Time `gorm:"index"`
	EndDate       time.Time
	IsCancelled   bool  `gorm:"not null;default:false"`
	CancelledDate *time.Time
	Version       int64 `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (policyRecord) TableName() string {
	return "policies"
}

func fromPolicy(p *policy.Policy) *policyRecord {
	return &policyRecord{
		PolicyNumber:  p.PolicyNumber,
		CustomerName:  p.CustomerName,
		StartDate:     p.StartDate.UTC(),
		EndDate:       p.EndDate.UTC(),
		IsCancelled:   p.IsCancelled,
		CancelledDate: utcPtr(p.CancelledDate),
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (r *policyRecord) toPolicy() policy.Policy {
	return policy.Policy{
		PolicyNumber:  r.PolicyNumber,
		CustomerName:  r.CustomerName,
		StartDate:     r.StartDate.UTC(),
		EndDate:       r.EndDate.UTC(),
		IsCancelled:   r.IsCancelled,
		CancelledDate: utcPtr(r.CancelledDate),
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
