package testutil_test

import (
	"github.com/APTrust/deposit/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

const sampleJsonLog = `{"DepositId":"d1","Reason":"first"}
not json at all
{"DepositId":"d2","Reason":"other"}
{"DepositId":"d1","Reason":"second"}
`

func TestFindRecordInLog(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "supervisor.json")
	require.Nil(t, os.WriteFile(logFile, []byte(sampleJsonLog), 0644))

	record := struct {
		DepositId string
		Reason    string
	}{}
	require.Nil(t, testutil.FindRecordInLog(logFile, "d1", &record))
	assert.Equal(t, "second", record.Reason)

	assert.NotNil(t, testutil.FindRecordInLog(logFile, "d9", &record))

	count, err := testutil.CountRecordsInLog(logFile, "d1")
	require.Nil(t, err)
	assert.Equal(t, 2, count)
}
