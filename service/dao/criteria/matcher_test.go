package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/nodeos/service/dao"
)

func TestMatch(t *testing.T) {
	var testCases = []struct {
		description string
		actual      string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", actual: "ready", expect: true},
		{description: "single value", actual: "ready", parameters: []*dao.Parameter{dao.NewParameter("State", "ready")}, expect: true},
		{description: "single mismatch", actual: "ready", parameters: []*dao.Parameter{dao.NewParameter("State", "running")}, expect: false},
		{description: "any of", actual: "waiting", parameters: []*dao.Parameter{dao.NewParameter("State", "ready", "waiting")}, expect: true},
		{description: "none of", actual: "terminated", parameters: []*dao.Parameter{dao.NewParameter("State", "ready", "waiting")}, expect: false},
		{description: "other names ignored", actual: "ready", parameters: []*dao.Parameter{dao.NewParameter("Category", "COMPUTE"), nil}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, FilterByState(tc.actual, tc.parameters))
		})
	}
}
