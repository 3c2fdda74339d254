package criteria

import (
	"github.com/viant/nodeos/service/dao"
)

// Match reports whether actual satisfies every parameter named name.
// Parameters with other names are ignored.
func Match(name, actual string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != name {
			continue
		}
		switch expected := parameter.Value.(type) {
		case string:
			if actual != expected {
				return false
			}
		case []string:
			if !contains(expected, actual) {
				return false
			}
		}
	}
	return true
}

// FilterByState matches the State parameter.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Match("State", state, parameters)
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
