// Package publisher uploads a Bazel registry working tree to an object-store
// bucket.
//
// A publish run has three ordered steps:
//
//  1. upload bazel_registry.json, replacing the remote object
//  2. upload module_list, replacing the remote object
//  3. mirror the modules/ directory to the modules/ prefix, uploading new
//     or changed files and deleting remote objects with no local counterpart
//
// Each step is a precondition for the next. The first failure stops the run
// and is returned as an *Error naming the step; nothing is rolled back and
// nothing is retried. Keys outside these three locations are never touched.
//
// Basic usage:
//
//	bucket, err := s3.New(ctx, publisher.DefaultBucket)
//	if err != nil {
//	    return err
//	}
//	p, err := publisher.New(bucket, publisher.WithRoot("."))
//	if err != nil {
//	    return err
//	}
//	result, err := p.Publish(ctx)
package publisher
