// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Set at build time through -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString renders the build information for "agentconsole version".
func VersionString() string {
	return fmt.Sprintf("agentconsole %s (%s, built %s)", Version, Sha, Buildtime)
}
