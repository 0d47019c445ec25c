package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnreachable is matched by UnreachableError via errors.Is
var ErrUnreachable = errors.New("device unreachable")

// UnreachableError is returned when no probe method reached the address
type UnreachableError struct {
	Address string
	Methods []ProbeMethod
}

func (e *UnreachableError) Error() string {
	names := make([]string, len(e.Methods))
	for i, m := range e.Methods {
		names[i] = string(m)
	}
	return fmt.Sprintf("%s unreachable via [%s]", e.Address, strings.Join(names, ", "))
}

func (e *UnreachableError) Is(target error) bool {
	return target == ErrUnreachable
}
