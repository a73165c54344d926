package version

// Default values are overridden at build time via -ldflags in the Dockerfile.
// Keep these lower-case so ldflags can set them without exporting internals.
var (
	buildVersion = "dev"
	builtAt      = ""
)

// Info represents the running backend build metadata.
type Info struct {
	Version string `json:"version"`
	BuiltAt string `json:"built_at,omitempty"`
}

func BuildVersion() string {
	return buildVersion
}

func BuiltAt() string {
	return builtAt
}

func GetInfo() Info {
	return Info{
		Version: BuildVersion(),
		BuiltAt: BuiltAt(),
	}
}
