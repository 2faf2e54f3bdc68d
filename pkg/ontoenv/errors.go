// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds surfaced by the environment. Callers match with
// errors.Is; richer errors wrap these.
var (
	ErrNotFound                   = errors.New("not found")
	ErrAmbiguous                  = errors.New("ambiguous resolution")
	ErrMissingOntologyDeclaration = errors.New("no ontology declaration found")
	ErrHashMismatch               = errors.New("content hash changed while overwrite is disallowed")
	ErrReadOnly                   = errors.New("environment is read-only")
	ErrClosed                     = errors.New("environment is closed")
	ErrExists                     = errors.New("environment already exists")
	ErrNoEnvironment              = errors.New("no ontology environment found")
)

// ImportError annotates a failure with the chain of raw import IRIs that led
// to it, starting at the ontology the user asked for.
type ImportError struct {
	// Path holds the raw IRIs from the root to the failing import.
	Path []string
	Err  error
}

func (e *ImportError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (import path: %s)", e.Err, strings.Join(e.Path, " -> "))
}

func (e *ImportError) Unwrap() error { return e.Err }

// annotateImport wraps err with the import path unless it already carries one.
func annotateImport(err error, path []string) error {
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	return &ImportError{Path: append([]string(nil), path...), Err: err}
}
