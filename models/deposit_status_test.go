package models_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestNewDepositStatus(t *testing.T) {
	fields := map[string]string{constants.FieldFileName: "photos.zip"}
	status := models.NewDepositStatus("d1", fields)
	assert.Equal(t, "d1", status.DepositId)
	assert.Equal(t, "photos.zip", status.FileName())

	// Status holds a copy.
	fields[constants.FieldFileName] = "changed.zip"
	assert.Equal(t, "photos.zip", status.FileName())

	empty := models.NewDepositStatus("d2", nil)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.Get(constants.FieldState))
}

func TestDepositStatusAccessors(t *testing.T) {
	status := models.NewDepositStatus("d1", nil)
	status.Set(constants.FieldPackagingType, " "+constants.PackagingBagIt+" ")
	status.Set(constants.FieldDepositMd5, "  ")
	status.Set(constants.FieldContainerId, "uuid:1234")
	status.Set(constants.FieldDepositorName, "someone")
	status.Set(constants.FieldStaffOnly, "true")
	status.Set(constants.FieldExcludeDepositRecord, "false")

	assert.Equal(t, constants.PackagingBagIt, status.PackagingType())
	assert.False(t, status.HasSuppliedChecksum())
	assert.Equal(t, "uuid:1234", status.ContainerId())
	assert.Equal(t, "someone", status.DepositorName())
	assert.True(t, status.StaffOnly())
	assert.False(t, status.ExcludeDepositRecord())

	status.Set(constants.FieldDepositMd5, "4d66f1ec9491addded54d17b96df8c96")
	assert.True(t, status.HasSuppliedChecksum())
}

func TestDepositStatusIsTerminal(t *testing.T) {
	status := models.NewDepositStatus("d1", nil)
	assert.False(t, status.IsTerminal())
	status.Set(constants.FieldState, constants.StateTransferring)
	assert.False(t, status.IsTerminal())
	status.Set(constants.FieldState, constants.StateFailed)
	status.Set(constants.FieldErrorMessage, "Virus found")
	assert.True(t, status.IsTerminal())
	assert.Equal(t, "Virus found", status.ErrorMessage())
}
