// Package chunker turns one inbound webhook request into a stream of
// workqueue.Entry records durably enqueued under a shared request_id.
//
// The original implementation buffers the whole request body, then solves
// for a chunk size that keeps every envelope's base64'd payload under the
// push service's envelope ceiling (resolve_chunking / max_chunk_data_bytes
// in the Rust source). This package keeps that size-solving algorithm but
// runs it against a streaming reader: the chunk size is fixed once up
// front from a worst-case bound on total chunk count, then chunks are cut
// and enqueued as bytes arrive, never holding the full body in memory.
package chunker
