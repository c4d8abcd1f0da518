package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DepositFailure describes why a deposit stopped. It's written to
// the deposit's status fields for operators and to the JSON log.
type DepositFailure struct {
	DepositId string
	State     string
	JobType   string
	Reason    string
	Detail    string
	FailedAt  time.Time
}

func NewDepositFailure(depositId, state, jobType, reason, detail string) *DepositFailure {
	return &DepositFailure{
		DepositId: depositId,
		State:     state,
		JobType:   jobType,
		Reason:    reason,
		Detail:    detail,
		FailedAt:  time.Now().UTC(),
	}
}

func (failure *DepositFailure) String() string {
	return fmt.Sprintf("Deposit %s failed in %s (%s): %s",
		failure.DepositId, failure.State, failure.JobType, failure.Reason)
}

// ToJson returns the failure as a single line of JSON.
func (failure *DepositFailure) ToJson() (string, error) {
	data, err := json.Marshal(failure)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
