package version

const (
	Version     = "0.1.0"
	Name        = "udsd"
	Description = "UDS (ISO 14229-1) diagnostic responder over ISO-TP (ISO 15765-2) / CAN"
	Copyright   = "© 2026 Kevin Buckham"
	Developers  = "Kevin Buckham"
	License     = "GPL-2.0-or-later"
	Attribution = "Service/NRC layout grounded on the S32K144 CAN diagnostic firmware this responder reimplements"
	URL         = "https://github.com/kbuckham/udsd"
)

// Injected at build time via -ldflags
var (
	GitHash   = "dev"
	BuildTime = "unknown"
)

// FullVersion returns version string with git hash and build time.
func FullVersion() string {
	return Version + " (" + GitHash + ") built " + BuildTime
}
