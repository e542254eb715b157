package cmd

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"relay-swap/pkg/types"
)

func TestGetColoredStatus(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = noColor })

	assert.Equal(t, color.GreenString("SUCCESS"), getColoredStatus(types.StatusSuccess))
	assert.Equal(t, color.YellowString("PENDING"), getColoredStatus(types.StatusPending))
	assert.Equal(t, color.YellowString("WAITING"), getColoredStatus("Waiting"))
	assert.Equal(t, color.RedString("FAILURE"), getColoredStatus(types.StatusFailure))
	assert.Equal(t, color.RedString("REFUND"), getColoredStatus(types.StatusRefund))
	assert.Equal(t, color.RedString("REFUNDED"), getColoredStatus("refunded"))
	assert.Equal(t, "UNKNOWN", getColoredStatus("unknown"))
}
