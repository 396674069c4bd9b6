// Package tallyengine implements the live poll tally engine inside the
// live-polling context.
//
// The module owns the authoritative tally of the single active poll, the set
// of live websocket sessions, the vote coordination pipeline and the fanout of
// tally snapshots. Storage backends, the websocket transport and the control
// plane sit behind ports and adapters so the application layer stays free of
// infrastructure.
package tallyengine
