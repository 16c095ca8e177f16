package main

// version is set at build time via ldflags.
var version = "dev"

// userAgent identifies pdbsearch to the PDB servers.
func userAgent() string {
	return "pdbsearch/" + version
}
