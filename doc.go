/*
Package arbor is a transport-agnostic request execution engine. An
application declares actions (named operations with typed, validated
inputs), registers them once, and serves them unchanged over HTTP,
WebSocket, the CLI, and background task queues.

Every call runs through the same pipeline regardless of transport:
resolve the action, load the caller's session, format and validate
params, run the handler, and wrap the outcome in a uniform response
envelope. Failures never escape the pipeline; they come back as tagged
errors from a closed taxonomy, and every call emits exactly one
structured log line.

The engine runs entirely in memory by default. Pointing it at Redis
turns the same program into a multi-node deployment: sessions, task
queues, pub/sub channels, and fan-out aggregates all move to shared
backends without touching action code.
*/
package arbor
