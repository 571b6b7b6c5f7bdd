/*
Package timer provides the one-shot task scheduler behind per-operation
timeouts.

A Scheduler hands out cancelable Timeout handles. The connection manager
schedules a release task for every connection checkout; if the operation
finishes first the handle is canceled, if not the task fires and releases
the checkout instead. Stop cancels everything still pending, which is the
last step before the transport shuts down.

Timers are standard library time.AfterFunc underneath; the scheduler adds
the bookkeeping needed to cancel in bulk at shutdown.
*/
package timer
