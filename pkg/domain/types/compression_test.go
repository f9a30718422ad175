package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

func TestParseCompressionMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.CompressionMode
		wantErr bool
	}{
		{
			name:  "deferred",
			input: "deferred",
			want:  types.CompressionModeDeferred,
		},
		{
			name:  "synchronous",
			input: "synchronous",
			want:  types.CompressionModeSynchronous,
		},
		{
			name:  "empty defaults to deferred",
			input: "",
			want:  types.CompressionModeDeferred,
		},
		{
			name:    "unknown mode",
			input:   "eventually",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := types.ParseCompressionMode(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, parsed).Equal(tt.want)
		})
	}
}

func TestJobState_Terminal(t *testing.T) {
	gt.B(t, types.JobStateCompleted.Terminal()).True()
	gt.B(t, types.JobStateTimedOut.Terminal()).True()
	gt.B(t, types.JobStateFailed.Terminal()).True()
	gt.B(t, types.JobStateQueued.Terminal()).False()
	gt.B(t, types.JobStateRunning.Terminal()).False()
}
