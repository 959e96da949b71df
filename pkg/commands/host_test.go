package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseHost is a function.
func TestParseHost(t *testing.T) {
	type scenario struct {
		input    string
		expected Host
		errors   bool
	}

	scenarios := []scenario{
		{
			"alice@one.example.com",
			Host{Name: "alice@one.example.com", User: "alice", Addr: "one.example.com", Port: 22},
			false,
		},
		{
			"alice@one.example.com:2222",
			Host{Name: "alice@one.example.com:2222", User: "alice", Addr: "one.example.com", Port: 2222},
			false,
		},
		{
			"one.example.com",
			Host{Name: "one.example.com", User: "deployer", Addr: "one.example.com", Port: 22},
			false,
		},
		{
			"@one.example.com",
			Host{},
			true,
		},
		{
			"alice@",
			Host{},
			true,
		},
		{
			"alice@one.example.com:notaport",
			Host{},
			true,
		},
		{
			"alice@one.example.com:0",
			Host{},
			true,
		},
	}

	for _, s := range scenarios {
		host, err := ParseHost(s.input, "deployer")
		if s.errors {
			assert.Error(t, err)
			assert.True(t, HasErrorCode(err, ExitConfig))
			continue
		}
		assert.NoError(t, err)
		assert.EqualValues(t, s.expected, host)
	}
}
