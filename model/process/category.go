package process

import (
	"fmt"
	"strings"
)

// Category classifies the workload a process represents.
type Category string

const (
	CategorySystem      Category = "SYSTEM"
	CategoryInteractive Category = "INTERACTIVE"
	CategoryCompute     Category = "COMPUTE"
	CategoryConsensus   Category = "CONSENSUS"
	CategoryNetwork     Category = "NETWORK"
	CategoryUser        Category = "USER"
)

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{CategorySystem, CategoryInteractive, CategoryCompute, CategoryConsensus, CategoryNetwork, CategoryUser}
}

// ParseCategory resolves a case-insensitive category name; empty means USER.
func ParseCategory(name string) (Category, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return CategoryUser, nil
	}
	for _, candidate := range Categories() {
		if string(candidate) == name {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// LatencySensitive is true for categories that favour short response times.
func (c Category) LatencySensitive() bool {
	switch c {
	case CategoryInteractive, CategoryNetwork, CategorySystem:
		return true
	}
	return false
}

// ComputeBound is true for categories with long, sustained CPU bursts.
func (c Category) ComputeBound() bool {
	return c == CategoryCompute || c == CategoryConsensus
}
