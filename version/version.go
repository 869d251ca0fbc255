package version

// BridgeSemVer is the semantic version of the hdbridge node software. It may
// be overridden at build time via -ldflags.
var BridgeSemVer = "0.1.0"
