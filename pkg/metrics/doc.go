/*
Package metrics exposes Prometheus metrics for the connection manager.

All metrics are package-level collectors registered at init time, so any
package can record without plumbing a registry around. Handler() returns
the promhttp handler for embedding applications that want to scrape the
client.

# Metrics

Routing:
  - burrow_partitions_total: partitions in the routing table

Pub/sub:
  - burrow_channels_active: channels mapped in the registry
  - burrow_pubsub_entries_active: live pub/sub pool entries
  - burrow_subscribes_total{kind}: subscriptions by kind (subscribe, psubscribe)
  - burrow_unsubscribes_total: network unsubscribes issued
  - burrow_resubscribes_total: channels re-homed after replica loss

Checkouts:
  - burrow_checkouts_total{op}: connection checkouts (read, write)
  - burrow_checkout_timeouts_total: checkouts reclaimed by timeout
  - burrow_pending_operations: operations admitted and not yet released
*/
package metrics
