package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvExpr(t *testing.T) {
	testCases := []struct {
		name   string
		env    map[string]string
		input  string
		expect string
	}{
		{name: "no expressions", input: "cores: 4", expect: "cores: 4"},
		{name: "single expression", env: map[string]string{"NODE_CORES": "8"}, input: "cores: ${env.NODE_CORES}", expect: "cores: 8"},
		{name: "repeated expressions", env: map[string]string{"A": "1", "B": "2"}, input: "${env.A}-${env.B}-${env.A}", expect: "1-2-1"},
		{name: "unset variable becomes empty", input: "level=${env.NODEOS_UNSET}-end", expect: "level=-end"},
		{name: "fallback for unset variable", input: "level: ${env.NODEOS_UNSET:-info}", expect: "level: info"},
		{name: "fallback ignored when set", env: map[string]string{"LEVEL": "debug"}, input: "${env.LEVEL:-info}", expect: "debug"},
		{name: "missing closing brace", env: map[string]string{"X": "x"}, input: "start ${env.X and ${env.Y} end", expect: "start ${env.X and  end"},
		{name: "unterminated", input: "tail ${env.X", expect: "tail ${env.X"},
		{name: "prefix only no key", input: "oops ${env.} done", expect: "oops  done"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range []string{"NODE_CORES", "A", "B", "X", "Y", "LEVEL", "NODEOS_UNSET"} {
				t.Setenv(key, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tc.expect, expandEnvExpr(tc.input))
		})
	}
}
