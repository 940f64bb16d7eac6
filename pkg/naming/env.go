package naming

import "strconv"

// PortVariable is the environment variable carrying the allocated port.
const PortVariable = "RHPORT"

// ComposeEnv prepends the port binding line to extra. extra is appended
// verbatim and never parsed.
func ComposeEnv(port uint16, extra string) string {
	env := PortVariable + "=" + strconv.FormatUint(uint64(port), 10) + "\n"
	if extra != "" {
		env += extra
	}
	return env
}
