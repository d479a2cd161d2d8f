// Package registry tracks topic subscriptions per connection.
//
// The connection lifecycle only needs UnsubscribeAll during teardown;
// the rest of the surface serves message routing. Two backends exist:
// MemoryRegistry for a single instance and RedisRegistry for a fleet.
package registry
