package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name    string
		caller  []string
		sink    string
		audit   bool
		want    []string
		wantErr bool
	}{
		{
			name:   "caller args pass through after the sink",
			caller: []string{"-i", "model.vw", "-t", "--quiet"},
			sink:   sinkStdout,
			want:   []string{"-p", "/dev/stdout", "-i", "model.vw", "-t", "--quiet"},
		},
		{
			name: "no caller args",
			sink: sinkNull,
			want: []string{"-p", "/dev/null"},
		},
		{
			name:    "caller-supplied -p is rejected",
			caller:  []string{"-p", "somewhere", "-t"},
			sink:    sinkStdout,
			wantErr: true,
		},
		{
			name:   "audit drops -t and adds -a",
			caller: []string{"-i", "model.vw", "-t", "--quiet"},
			sink:   sinkStdout,
			audit:  true,
			want:   []string{"-p", "/dev/stdout", "-i", "model.vw", "--quiet", "-a"},
		},
		{
			name:   "audit keeps an existing -a",
			caller: []string{"-i", "model.vw", "-a"},
			sink:   sinkStdout,
			audit:  true,
			want:   []string{"-p", "/dev/stdout", "-i", "model.vw", "-a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildArgs(tt.caller, tt.sink, tt.audit)
			if tt.wantErr {
				require.Error(t, err)
				var engErr *Error
				require.ErrorAs(t, err, &engErr)
				assert.Equal(t, ErrCodeMisuse, engErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNonBlockingRejectsWriteOnly(t *testing.T) {
	_, err := NewNonBlocking(nil, nil, WithWriteOnly(), WithLogger(quietLogger()))
	require.Error(t, err)
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrCodeMisuse, engErr.Code)
}
