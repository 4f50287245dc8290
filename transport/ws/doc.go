// Package ws is the persistent bidirectional transport adapter. Each
// websocket connection accepts chat envelopes, hands them to the stream
// coordinator, and forwards every wire event as one websocket message in
// production order. The adapter is exempt from the connection timeout
// scope: a healthy connection routinely outlives any single request, so
// only the stream scope bounds a run. Disconnects cancel every run active
// on the connection.
package ws
