package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "kind only",
			err:  &Error{Kind: KindAgentNotFound},
			want: "agent not found",
		},
		{
			name: "op and message",
			err:  New(KindClientNotRunning, "bind client", `app "com.example" is not running`),
			want: `bind client: app "com.example" is not running`,
		},
		{
			name: "wrapped cause",
			err:  Wrap(KindDeployFailed, "deploy agent", stderrors.New("device offline"), "push perfd"),
			want: "deploy agent: push perfd: device offline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsKind(t *testing.T) {
	cause := stderrors.New("forward rejected")
	err := fmt.Errorf("start session: %w", Wrap(KindForwardSetupFailed, "forward", cause, ""))

	assert.ErrorIs(t, err, KindForwardSetupFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, KindStartFailed)
	assert.Equal(t, KindForwardSetupFailed, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
	assert.Equal(t, KindInterrupted, KindOf(KindInterrupted))
	assert.Equal(t, KindSaveFailed, KindOf(Newf(KindSaveFailed, "save", "write %s", "out.trace")))
}

func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, Wrap(KindStopFailed, "stop", nil, "ignored"))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "session conflict", KindSessionConflict.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
