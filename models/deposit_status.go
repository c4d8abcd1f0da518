package models

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/util"
	"strings"
)

// DepositStatus is the flat, string-keyed status map of one deposit.
// Any stage may add or change fields. Values are never rolled back.
type DepositStatus struct {
	DepositId string
	Fields    map[string]string
}

// NewDepositStatus returns a DepositStatus wrapping a copy of fields.
// Param fields may be nil.
func NewDepositStatus(depositId string, fields map[string]string) *DepositStatus {
	status := &DepositStatus{
		DepositId: depositId,
		Fields:    make(map[string]string, len(fields)),
	}
	for key, value := range fields {
		status.Fields[key] = value
	}
	return status
}

// Get returns the value of field, or an empty string.
func (status *DepositStatus) Get(field string) string {
	if status.Fields == nil {
		return ""
	}
	return status.Fields[field]
}

// Set sets field to value.
func (status *DepositStatus) Set(field, value string) {
	if status.Fields == nil {
		status.Fields = make(map[string]string)
	}
	status.Fields[field] = value
}

// IsEmpty returns true if no fields are set. Stores return an empty
// status for deposits they have never seen or have already expired.
func (status *DepositStatus) IsEmpty() bool {
	return len(status.Fields) == 0
}

func (status *DepositStatus) PackagingType() string {
	return strings.TrimSpace(status.Get(constants.FieldPackagingType))
}

func (status *DepositStatus) FileName() string {
	return status.Get(constants.FieldFileName)
}

// SuppliedChecksum is the checksum the depositor sent with the
// package, if any.
func (status *DepositStatus) SuppliedChecksum() string {
	return strings.TrimSpace(status.Get(constants.FieldDepositMd5))
}

func (status *DepositStatus) HasSuppliedChecksum() bool {
	return status.SuppliedChecksum() != ""
}

func (status *DepositStatus) ContainerId() string {
	return status.Get(constants.FieldContainerId)
}

func (status *DepositStatus) DepositorName() string {
	return status.Get(constants.FieldDepositorName)
}

func (status *DepositStatus) StaffOnly() bool {
	return util.StatusFlag(status.Get(constants.FieldStaffOnly))
}

func (status *DepositStatus) ExcludeDepositRecord() bool {
	return util.StatusFlag(status.Get(constants.FieldExcludeDepositRecord))
}

func (status *DepositStatus) State() string {
	return status.Get(constants.FieldState)
}

// IsTerminal returns true if the deposit is COMPLETE or FAILED.
func (status *DepositStatus) IsTerminal() bool {
	return constants.IsTerminalState(status.State())
}

func (status *DepositStatus) ErrorMessage() string {
	return status.Get(constants.FieldErrorMessage)
}

func (status *DepositStatus) ErrorDetail() string {
	return status.Get(constants.FieldErrorDetail)
}
