/*
Package agentregistry implements the ephemeral, in-memory map of the
last heartbeat seen from each collector instance, keyed by instance_uid.

Grounded on johnjansen-torua's ShardRegistry — map + sync.RWMutex, every
read returning a defensive copy, every write holding the lock only across
the in-memory mutation and never across I/O, since pkg/api's OpAMP handler
calls Process while holding no other lock.
*/
package agentregistry
