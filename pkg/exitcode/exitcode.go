// Package exitcode provides standardized exit codes for the mirror engine
package exitcode

// Exit codes for the mirrorengine CLI
const (
	Success       = 0
	GeneralError  = 1
	ConfigError   = 2
	ManifestError = 3
	NetworkError  = 4
	Interrupted   = 130
)

// Different is returned by compare when the two filters are not equivalent.
const Different = GeneralError

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ManifestError:
		return "Manifest error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
