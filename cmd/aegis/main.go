// Aegis is an adaptive governance engine for multi-agent message traffic.
//
// It evaluates inter-agent messages against a constitutional hash guard,
// a weighted impact scorer with adaptive thresholds, role-separated
// validation with quorum at CRITICAL, and an external policy service,
// recording every decision in a hash-chained audit ledger.
//
// Usage:
//
//	# Start the governance server with default configuration
//	aegis run
//
//	# Start with a custom configuration file
//	aegis run --config /etc/aegis/config.yaml
//
//	# Validate a configuration file without starting
//	aegis validate --config /etc/aegis/config.yaml
//
//	# Verify the audit chain offline
//	aegis verify
//
//	# Export audit records
//	aegis export --format json --output audit.json
//
//	# Show version information
//	aegis version
package main

func main() {
	Execute()
}
