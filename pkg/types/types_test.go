package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Addr
		wantErr bool
	}{
		{name: "host and port", input: "127.0.0.1:6379", want: Addr{Host: "127.0.0.1", Port: 6379}},
		{name: "hostname", input: "db.internal:6380", want: Addr{Host: "db.internal", Port: 6380}},
		{name: "missing port", input: "127.0.0.1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "port not a number", input: "host:abc", wantErr: true},
		{name: "port zero", input: "host:0", wantErr: true},
		{name: "port out of range", input: "host:70000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddr(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddrString(t *testing.T) {
	a := Addr{Host: "127.0.0.1", Port: 6379}
	assert.Equal(t, "127.0.0.1:6379", a.String())
}
