package arbor

// Version is the release tag, overridable at build time with
// -ldflags "-X github.com/aretw0/arbor.Version=...".
var Version = "0.3.0"
