// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface, used to archive datasets to object storage.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(s3.NewFromConfig(cfg), "my-bucket", "datasets/")
//
//	err = archive.Archive(ctx, ds, store, "tox21/v1")
//
// # Features
//
//   - Range reads for partial fetches
//   - Streaming multipart uploads for large shard files
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// CommitStore layers DynamoDB conditional writes on top for atomic archive
// commit pointers, which plain S3 cannot provide.
package s3
