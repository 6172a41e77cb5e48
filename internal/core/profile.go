package core

import (
	"errors"
	"fmt"
	"strings"
)

const maxProfileNameLen = 100

var ErrInvalidTarget = errors.New("invalid target")

// Profile describes the business the ledger belongs to. The daily target
// drives the coaching tips.
type Profile struct {
	BusinessName string `json:"business_name"`
	BusinessType string `json:"business_type"`
	DailyTarget  Money  `json:"daily_target"`
	WeeklyTarget Money  `json:"weekly_target"`
}

// DefaultProfile is used until a profile is saved.
func DefaultProfile() Profile {
	return Profile{
		DailyTarget:  MustMoney("500"),
		WeeklyTarget: MustMoney("3500"),
	}
}

func (p Profile) Validate() error {
	if len(strings.TrimSpace(p.BusinessName)) > maxProfileNameLen {
		return fmt.Errorf("business name too long (max %d characters)", maxProfileNameLen)
	}
	if len(strings.TrimSpace(p.BusinessType)) > maxProfileNameLen {
		return fmt.Errorf("business type too long (max %d characters)", maxProfileNameLen)
	}
	if p.DailyTarget.Validate() != nil {
		return fmt.Errorf("daily %w", ErrInvalidTarget)
	}
	if p.WeeklyTarget.Validate() != nil {
		return fmt.Errorf("weekly %w", ErrInvalidTarget)
	}
	return nil
}
