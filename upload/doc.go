// Package upload validates incoming files and stores them through a
// pluggable backend.
//
// Every backend shares the same flow: validate, derive a unique storage key,
// decide between an in-memory and a streamed write, write with bounded
// retries and a per-attempt deadline, then delete the transport's temp
// artifact. A batch is validated as a whole before any write starts and, when
// one file fails, the temp artifacts of every file in the batch are removed.
package upload
