// Package audio provides the playback devices behind the playback
// controller: a cross-platform player built on oto/v3 and a mock that
// simulates playback timing for tests and headless runs.
package audio
