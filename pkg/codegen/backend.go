package codegen

import (
	"bytes"
	"fmt"

	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/ir"
)

// Backend turns an optimized IR program into an assembly text blob.
type Backend interface {
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
	Name() string
}

func NewBackend(name string) (Backend, error) {
	switch name {
	case "amd64":
		return &AMD64Backend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend '%s'", name)
	}
}
