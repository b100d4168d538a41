// Package campaign implements campaign lifecycle management.
//
// The service owns the draft → scheduled → sending → sent state machine,
// fans a survey out to the campaign's contact lists through the Mailer,
// and stamps delivery counters when a run completes. A distributed lock
// serializes sends per campaign across server instances.
//
// Repository implementations live in repository/postgres/.
package campaign
