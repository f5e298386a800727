package types //nolint:revive // types is a valid package name

// Version is the canonical ferry version.
// The CLI, the notification event contract and the user agent sent to the
// server all report this value.
const Version = "0.3.0"

// EventContractVersion is the version of the upload_completed event payload.
// It moves in lockstep with Version.
const EventContractVersion = Version
