//go:build tools

// Package tools declares tool dependencies for this module.
//
// The imports are not used at runtime. They keep Go-based tools invoked via
// go generate (mockgen) tracked in go.mod.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
