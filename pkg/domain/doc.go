/*
Package domain contains the core domain models for the Arbor engine.

It defines the fundamental entities of the dispatch pipeline: Actions and
their input schemas, Sessions, queued Tasks, fan-out aggregates, and the
response envelope with its closed error taxonomy. This package is kept pure
and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - Action: A named, transport-agnostic handler with a declared, ordered
    input schema and optional web/task bindings.
  - Caller: The view of the calling connection an Action handler receives.
  - Session: TTL-bound server-side state keyed by connection identity.
  - Task: One queued invocation of an Action, optionally tied to a fan-out.
  - FanOutStatus: The shared, atomically-updated aggregate for one batch.
  - Response / Error: The transport-independent result envelope.
*/
package domain
