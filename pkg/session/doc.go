/*
Package session implements session ownership and persistence orchestration.

A session is exclusively owned by the run executing against it. The Manager
rejects a second concurrent run (locally, and across replicas when a distributed
locker is configured) and reads/writes committed logs through a SessionStore.
*/
package session
