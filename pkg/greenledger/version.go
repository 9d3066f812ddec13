// Package greenledger holds module-level metadata.
package greenledger

// Version is the greenledger release version.
const Version = "0.2.0"
