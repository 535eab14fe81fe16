// Package coord guards a build so that exactly one participant of a
// parallel job performs it while the others wait for the outcome.
//
// A job is a fixed group of participants identified by rank. Rank 0 is
// the main participant. The Comm interface supplies the two collective
// operations the coordinator needs: Broadcast from rank 0 and Barrier.
// Three strategies are provided:
//
//   - Solo: a single participant, the default outside a parallel job
//   - NewLocalFleet: in-process participants connected by channels
//   - NetComm: participants in separate processes connected over TCP,
//     exchanging CBOR frames
//
// Coordinator.Run executes the build on the main participant, broadcasts
// an Outcome and makes every participant return the same result: nil on
// success, a *BuildError when the main participant failed.
// Coordinator.RunUnlessFresh first broadcasts the main participant's
// answer to a freshness check, so a skipped build is skipped everywhere.
package coord
