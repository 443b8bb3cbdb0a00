// Package matrix expands the target configuration into CI job entries,
// applies label filters, and shards the result to stay under the GitHub
// Actions per-matrix size limit.
package matrix

// Entry is one fully-specified CI job. Every value is a string because
// the workflow consumes matrix values as strings; Run in particular is
// the literal "true" or "false", never a native boolean.
//
// Entries are plain values: expansion builds one immutable base per
// (platform, target) pair and stamps out struct copies per python and
// build-option combination. No deduplication happens anywhere — two
// entries differing only in Python or BuildOptions are both wanted.
type Entry struct {
	Arch         string `json:"arch"`
	TargetTriple string `json:"target_triple"`
	Platform     string `json:"platform"`
	Runner       string `json:"runner"`
	Run          string `json:"run"`
	Python       string `json:"python"`
	BuildOptions string `json:"build_options"`
	ArchVariant  string `json:"arch_variant,omitempty"`
	Libc         string `json:"libc,omitempty"`
	VCVars       string `json:"vcvars,omitempty"`
	DryRun       string `json:"dry-run,omitempty"`
}

// Include is the {"include": [...]} wrapper the workflow's matrix
// strategy expects, used both unsharded and as each shard's value.
type Include struct {
	Include []Entry `json:"include"`
}
