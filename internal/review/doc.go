// Package review drives a single reviewer's pass over the task queue: claim
// the next task, attach match evidence from the similarity index and the
// hashing service, accept a decision, and advance. Calls on one session never
// interleave; multiple sessions coordinate only through the queue store's
// atomic dequeue. When the hashing service is unreachable the session keeps
// working on clearly-labeled demo evidence rather than aborting.
package review
