package protocol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status   byte
		expected Verdict
	}{
		{StatusOK, VerdictOK},
		{StatusBusy, VerdictRetryBusy},
		{StatusCrcError, VerdictRetryCrc},
		{StatusCmdError, VerdictFatalCmd},
		// combined bits: the device may set several at once
		{StatusBusy | StatusCrcError, VerdictRetryCrc},
		{StatusBusy | StatusCmdError, VerdictFatalCmd},
		{StatusCrcError | StatusCmdError, VerdictFatalCmd},
		// anything outside the known bit set is fatal
		{0x80, VerdictFatalUnknown},
		{0x02, VerdictFatalUnknown},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("0x%02X", test.status), func(t *testing.T) {
			assert.Equal(t, test.expected, Classify(test.status))
		})
	}
}

func TestBusy(t *testing.T) {
	assert.True(t, Busy(StatusBusy))
	assert.True(t, Busy(StatusBusy|StatusCrcError))
	assert.False(t, Busy(StatusOK))
	assert.False(t, Busy(StatusCrcError))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "ok", VerdictOK.String())
	assert.Equal(t, "retry-busy", VerdictRetryBusy.String())
	assert.Equal(t, "retry-crc", VerdictRetryCrc.String())
	assert.Equal(t, "command-rejected", VerdictFatalCmd.String())
	assert.Equal(t, "unknown-status", VerdictFatalUnknown.String())
}
