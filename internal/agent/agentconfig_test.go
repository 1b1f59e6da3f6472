package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// decodeFields returns the raw value of every top-level field in b.
func decodeFields(t *testing.T, b []byte) map[protowire.Number][]byte {
	t.Helper()

	fields := make(map[protowire.Number][]byte)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0, "bad tag")
		b = b[n:]

		m := protowire.ConsumeFieldValue(num, typ, b)
		require.GreaterOrEqual(t, m, 0, "bad field value")
		fields[num] = b[:m]
		b = b[m:]
	}
	return fields
}

func TestAgentConfig_Marshal(t *testing.T) {
	data := NewAgentConfig(12389).Marshal()
	fields := decodeFields(t, data)

	jvmti, n := protowire.ConsumeVarint(fields[fieldUseJVMTI])
	require.GreaterOrEqual(t, n, 0, "use_jvmti must be present")
	assert.True(t, protowire.DecodeBool(jvmti))
	_, hasSocketType := fields[fieldSocketType]
	assert.False(t, hasSocketType, "unspecified socket type is omitted")

	addr, n := protowire.ConsumeString(fields[fieldServiceAddress])
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, "127.0.0.1:12389", addr)

	name, n := protowire.ConsumeString(fields[fieldServiceSocketName])
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, "@AndroidStudioProfiler", name)

	memBytes, n := protowire.ConsumeBytes(fields[fieldMemConfig])
	require.GreaterOrEqual(t, n, 0)
	mem := decodeFields(t, memBytes)

	liveAlloc, n := protowire.ConsumeVarint(mem[fieldMemUseLiveAlloc])
	require.GreaterOrEqual(t, n, 0)
	assert.True(t, protowire.DecodeBool(liveAlloc))

	depth, n := protowire.ConsumeVarint(mem[fieldMemMaxStackDepth])
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, uint64(50), depth)
}

func TestAgentConfig_MarshalAllFields(t *testing.T) {
	cfg := AgentConfig{
		UseJVMTI:       true,
		SocketType:     SocketAbstract,
		ServiceAddress: "127.0.0.1:1",
	}
	fields := decodeFields(t, cfg.Marshal())

	v, n := protowire.ConsumeVarint(fields[fieldUseJVMTI])
	require.GreaterOrEqual(t, n, 0)
	assert.True(t, protowire.DecodeBool(v))

	v, n = protowire.ConsumeVarint(fields[fieldSocketType])
	require.GreaterOrEqual(t, n, 0)
	assert.Equal(t, uint64(SocketAbstract), v)

	// Memory config is always present, even when empty.
	memBytes, n := protowire.ConsumeBytes(fields[fieldMemConfig])
	require.GreaterOrEqual(t, n, 0)
	assert.Empty(t, memBytes)

	_, hasName := fields[fieldServiceSocketName]
	assert.False(t, hasName)
}
