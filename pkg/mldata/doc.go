// Package mldata provides a library for storing dataset files and
// machine-learning model artifacts used in defect detection, together with
// their tags and polygon-shaped defect labels.
//
// Binary payloads live in a pluggable blob store (memory, filesystem, S3
// under subpackages of storage/); structured metadata lives in a pluggable
// repository (memory, Postgres under subpackages of repo/). A single Service
// orchestrates every operation that touches both stores and defines the
// order of sub-steps, the deduplication contract for dataset uploads, and
// the documented failure windows when one half of a two-store mutation
// fails.
//
// Consistency Contract
//
// Upload writes the blob before the metadata row, so a crash between the
// two leaves an orphaned blob and no visible object. Delete removes the
// blob before the metadata, so a crash leaves a metadata row pointing at a
// missing blob and a retry of Delete is always safe (deleting an absent
// key is a no-op at the BlobStore boundary). Neither window is repaired on
// the request path; the admin package offers an out-of-band sweep that
// reports divergence between the two stores.
package mldata
