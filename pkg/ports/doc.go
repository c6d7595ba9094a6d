/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the dispatch core from external implementations,
allowing the engine to run over Redis in production and over in-memory or
file-backed adapters in tests, CLIs, and embedded use.

# Key Interfaces

  - SessionStore: persists TTL-bound sessions keyed by connection identity.
  - AggregateStore: holds fan-out aggregates whose counters must update
    atomically under concurrent reports.
  - TaskQueue: carries queued Action invocations to workers.
  - Broker: fans pub/sub messages out to subscribed connections.

The Run*Contract helpers verify that an implementation honors its port's
semantics; every adapter package runs them against its own backend.
*/
package ports
