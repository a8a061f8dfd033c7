// Package minio stores the blobs of a columnar feature store on MinIO or
// another S3 compatible endpoint (Ceph, SeaweedFS, Garage) without the AWS
// SDK.
//
//	blobs, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	}, "sequencing", "movie1.qvc")
//	err = blobs.EnsureBucket(ctx)
package minio
