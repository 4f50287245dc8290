// Package httpstream is the request/response transport adapter. One POST
// request maps to one run; wire events are streamed back as NDJSON lines
// flushed as they are produced. Unlike the persistent websocket transport,
// this adapter sits inside the connection timeout scope: a run that
// produces no bytes before the connection window closes is answered with a
// structured 504. Once the first byte is out, failures surface as the
// terminal on_error event inside the stream instead.
package httpstream
