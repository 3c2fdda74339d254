// Package swap defines the swap-area entity shared by the swap store vendors.
package swap

import (
	"strconv"
	"time"
)

// Page is the content of an evicted page
type Page struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"processId"`
	Index     int       `json:"index"`
	Data      []byte    `json:"data,omitempty"`
	Dirty     bool      `json:"dirty,omitempty"`
	SwappedAt time.Time `json:"swappedAt"`
}

// Key returns the swap key of page index of process pid
func Key(pid string, index int) string {
	return pid + "/" + strconv.Itoa(index)
}
