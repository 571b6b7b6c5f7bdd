/*
Package hashslot maps keys to hash slots for partition routing.

The slot space is fixed at 16384 slots. A key's slot is the CRC16
(CCITT/XModem) checksum of its bytes reduced modulo the slot count, which is
bit-for-bit the algorithm the clustered store uses server-side, so client
and server always agree on key placement.

# Hash Tags

A key may carry a hash tag: the substring between the first '{' and the
first following '}'. When a non-empty tag is present only the tag is
hashed, letting callers colocate related keys on one partition:

	slot1, _ := hashslot.ForKey("user:{42}:profile")
	slot2, _ := hashslot.ForKey("user:{42}:sessions")
	// slot1 == slot2

A '{' with no matching '}' is rejected with types.ErrInvalidKeyTag rather
than silently hashing a truncated key.

# Integration Points

This package integrates with:

  - pkg/manager: ResolveSlot uses ForKey for operation routing
  - pkg/partition: SlotMax is the sentinel key of the partition table
  - cmd/burrow: the slot subcommand exposes ForKey for debugging
*/
package hashslot
