// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines data structures shared by the pdbsearch packages.
package types

// Record is one structure file retrieved from the PDB.
type Record struct {
	// ID is the PDB accession code the record was requested under
	// (conventionally four alphanumeric characters, treated as opaque).
	ID string `json:"id" yaml:"id"`

	// Data holds the raw structure file bytes as served by the download endpoint.
	Data []byte `json:"-" yaml:"-"`
}

// Size returns the length of the structure file in bytes.
func (r Record) Size() int { return len(r.Data) }
