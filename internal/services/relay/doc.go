// Package relay implements the real-time room chat transport.
//
// It keeps WebSocket lifecycle, identity binding, room membership, and
// message fan-out isolated from the directory service so seeded user and
// room data remains a read-only collaborator.
package relay
