package agent

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tracehelper/tracehelper/internal/constants"
)

// SocketType selects how the agent reaches the profiler service.
type SocketType int32

const (
	SocketUnspecified SocketType = 0
	SocketAbstract    SocketType = 1
)

// Field numbers of the agent configuration message.
const (
	fieldUseJVMTI          protowire.Number = 1
	fieldMemConfig         protowire.Number = 2
	fieldSocketType        protowire.Number = 3
	fieldServiceAddress    protowire.Number = 4
	fieldServiceSocketName protowire.Number = 5

	fieldMemUseLiveAlloc  protowire.Number = 1
	fieldMemMaxStackDepth protowire.Number = 2
)

// MemoryConfig is the allocation tracking part of AgentConfig.
type MemoryConfig struct {
	UseLiveAlloc  bool
	MaxStackDepth int32
}

// AgentConfig is the startup configuration the agent reads from its
// config file.
type AgentConfig struct {
	UseJVMTI          bool
	Memory            MemoryConfig
	SocketType        SocketType
	ServiceAddress    string
	ServiceSocketName string
}

// NewAgentConfig returns the configuration for an agent serving on
// servicePort of the device loopback.
func NewAgentConfig(servicePort int) AgentConfig {
	return AgentConfig{
		UseJVMTI: true,
		Memory: MemoryConfig{
			UseLiveAlloc:  true,
			MaxStackDepth: constants.AgentMaxStackDepth,
		},
		SocketType:        SocketUnspecified,
		ServiceAddress:    fmt.Sprintf("127.0.0.1:%d", servicePort),
		ServiceSocketName: constants.ServiceSocketName,
	}
}

// Marshal encodes c in protobuf wire format. Fields holding their zero
// value are omitted.
func (c AgentConfig) Marshal() []byte {
	var b []byte
	b = appendBool(b, fieldUseJVMTI, c.UseJVMTI)

	var mem []byte
	mem = appendBool(mem, fieldMemUseLiveAlloc, c.Memory.UseLiveAlloc)
	if c.Memory.MaxStackDepth != 0 {
		mem = protowire.AppendTag(mem, fieldMemMaxStackDepth, protowire.VarintType)
		mem = protowire.AppendVarint(mem, uint64(c.Memory.MaxStackDepth))
	}
	b = protowire.AppendTag(b, fieldMemConfig, protowire.BytesType)
	b = protowire.AppendBytes(b, mem)

	if c.SocketType != SocketUnspecified {
		b = protowire.AppendTag(b, fieldSocketType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.SocketType))
	}
	b = appendString(b, fieldServiceAddress, c.ServiceAddress)
	b = appendString(b, fieldServiceSocketName, c.ServiceSocketName)
	return b
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
