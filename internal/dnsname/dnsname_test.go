package dnsname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		patterns []string
		want     bool
	}{
		{"exact match", "example.com", []string{"example.com"}, true},
		{"wildcard matches subdomain", "dept.example.com", []string{"*.example.com"}, true},
		{"wildcard does not match bare parent", "example.com", []string{"*.example.com"}, false},
		{"empty allow-list matches nothing", "example.com", nil, false},
		{"unrelated host does not match", "evil.com", []string{"example.com"}, false},
		{"malformed 2-label wildcard never matches", "b.com", []string{"*.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.host, tt.patterns))
		})
	}
}
