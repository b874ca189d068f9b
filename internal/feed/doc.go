// Package feed broadcasts newly stored candles to websocket subscribers.
//
// Clients connect to the hub's path, optionally with ?instrument=BASE-QUOTE
// to receive a single instrument. Each appended batch is sent as one JSON
// message. A client that cannot keep up is disconnected rather than slowing
// ingestion down.
package feed
