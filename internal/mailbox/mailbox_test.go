package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "invoice.edi", want: "invoice.edi"},
		{name: "nested", input: "2024/03/invoice.edi", want: "2024/03/invoice.edi"},
		{name: "redundant dots", input: "./a/./b.edi", want: "a/b.edi"},
		{name: "backslashes", input: `a\b.edi`, want: "a/b.edi"},
		{name: "empty", input: "", wantErr: true},
		{name: "absolute", input: "/etc/passwd", wantErr: true},
		{name: "parent", input: "../a.edi", wantErr: true},
		{name: "parent after clean", input: "a/../../a.edi", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasExtension(t *testing.T) {
	assert.True(t, hasExtension("a.EDI", DefaultExtensions))
	assert.True(t, hasExtension("a.810", DefaultExtensions))
	assert.False(t, hasExtension("a.pdf", DefaultExtensions))
	assert.False(t, hasExtension("edi", DefaultExtensions))
	assert.True(t, hasExtension("anything", nil))
}
