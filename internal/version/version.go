package version

// Version is the release string stamped into the binary.
var Version = "0.1.0"

func String() string { return Version }
