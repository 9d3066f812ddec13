package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		pb      PatchBlock
		wantErr error
	}{
		{
			name: "valid forward patch",
			pb: PatchBlock{
				PatchID: "PB-20250812-1234",
				Status:  StatusAccepted,
				Source:  SourceAgent,
			},
		},
		{
			name: "valid rollback patch",
			pb: PatchBlock{
				PatchID: "RB-20250812-0A1F",
				Status:  StatusPartial,
				Source:  SourceRollback,
			},
		},
		{
			name: "lowercase hex in rollback id",
			pb: PatchBlock{
				PatchID: "RB-20250812-0a1f",
				Status:  StatusAccepted,
				Source:  SourceManual,
			},
			wantErr: ErrInvalidPatchID,
		},
		{
			name: "short sequence number",
			pb: PatchBlock{
				PatchID: "PB-20250812-123",
				Status:  StatusAccepted,
				Source:  SourceManual,
			},
			wantErr: ErrInvalidPatchID,
		},
		{
			name: "unknown status",
			pb: PatchBlock{
				PatchID: "PB-20250812-1234",
				Status:  "greenish",
				Source:  SourceManual,
			},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "unknown source",
			pb: PatchBlock{
				PatchID: "PB-20250812-1234",
				Status:  StatusAccepted,
				Source:  "ci-bot",
			},
			wantErr: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pb.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidPlanLineID(t *testing.T) {
	assert.True(t, ValidPlanLineID("PL-1"))
	assert.True(t, ValidPlanLineID("PL-204"))
	assert.False(t, ValidPlanLineID("PL-"))
	assert.False(t, ValidPlanLineID("pl-1"))
	assert.False(t, ValidPlanLineID("PL-1x"))
}
