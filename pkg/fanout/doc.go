/*
Package fanout coordinates one-to-many task execution. A fan-out takes
a set of child jobs, enqueues them for background workers, and tracks
their completion in a TTL-bound aggregate that callers poll by id.

The coordinator never waits for children. Enqueueing is fire-and-forget
from the caller's point of view; workers report each child's outcome
into the aggregate, and the aggregate expires passively once reports
stop arriving and the TTL runs out.
*/
package fanout
