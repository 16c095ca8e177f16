package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero means no timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pdbsearch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ClientConfig holds settings for the PDB search and download client.
type ClientConfig struct {
	HTTPConfig `yaml:",inline"`

	// SearchURL is the endpoint composite queries are POSTed to.
	SearchURL string `json:"search_url" yaml:"search_url"`

	// DownloadURL is the endpoint structure files are fetched from. The
	// fileFormat, compression and structureId parameters are appended.
	DownloadURL string `json:"download_url" yaml:"download_url"`
}

// OutputConfig holds settings for writing fetched records.
type OutputConfig struct {
	// Dir is the directory <id>.pdb files are written to (default ".").
	Dir string `json:"dir" yaml:"dir"`

	// Manifest is an optional SQLite file logging each run's downloads.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// LigandConfig holds the ligand name clause options.
type LigandConfig struct {
	// Comparator is the name match mode (default "Contains").
	Comparator string `json:"comparator" yaml:"comparator"`

	// Polymeric restricts the polymeric type (default "Any").
	Polymeric string `json:"polymeric" yaml:"polymeric"`
}
