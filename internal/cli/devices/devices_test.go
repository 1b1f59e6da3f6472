package devices

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracehelper/tracehelper/internal/cli/helpers"
)

func TestNewDevicesCmd_Flags(t *testing.T) {
	cmd := NewDevicesCmd()

	format := cmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "o", format.Shorthand)
	assert.Equal(t, "table", format.DefValue)

	adbFlag := cmd.Flags().Lookup("adb")
	require.NotNil(t, adbFlag)
	assert.Equal(t, "adb", adbFlag.DefValue)
}

func TestRowTable(t *testing.T) {
	rows := []Row{
		{Serial: "emulator-5554", State: "device", ABIs: "x86_64,arm64-v8a"},
		{Serial: "R58M12345", State: "unauthorized"},
	}

	var out bytes.Buffer
	require.NoError(t, helpers.TableFormatter{}.Format(rows, &out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"SERIAL", "STATE", "ABIS"}, fieldsOf(lines[0]))
	assert.Equal(t, []string{"emulator-5554", "device", "x86_64,arm64-v8a"}, fieldsOf(lines[1]))
	assert.Equal(t, []string{"R58M12345", "unauthorized"}, fieldsOf(lines[2]))
}

func fieldsOf(line []byte) []string {
	var out []string
	for _, f := range bytes.Fields(line) {
		out = append(out, string(f))
	}
	return out
}
