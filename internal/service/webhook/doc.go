// Package webhook implements outbound event delivery to subscriber
// endpoints.
//
// Every delivery is recorded as a WebhookDelivery row created in pending
// status before any network I/O, so a crash mid-send still leaves an
// audit trail. Payloads are signed with HMAC-SHA256 over the serialized
// envelope. Ten consecutive failures disable a webhook until it is
// manually re-enabled.
package webhook
