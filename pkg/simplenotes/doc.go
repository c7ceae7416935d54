// Package simplenotes provides the consistency core of a note-taking backend:
// notes with tags and attached images, where note/tag/image metadata lives in
// a relational repository and image bytes live in a blob store.
//
// It exposes a single Service interface that orchestrates note lifecycle and
// tag reconciliation, image upload and delete across both stores, and a
// reconciliation scan that finds blobs and rows that lost their counterpart.
// Repository implementations (memory, Postgres) and blob stores (memory,
// filesystem, S3, MinIO) are provided under subpackages.
//
// Cross-store consistency
//
// There is no transaction spanning the repository and the blob store. Upload
// writes the blob first and deletes it again if the row cannot be inserted.
// Delete removes the blob first and the row second, so a crash in between
// leaves a dangling row rather than an unreferenced blob. Reconcile repairs
// whatever slips through.
package simplenotes
