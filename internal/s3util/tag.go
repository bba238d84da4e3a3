package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=animeutopia"

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
// Use as the Tagging field on PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// TaggingAPI is the subset of the S3 client used by TagObject.
type TaggingAPI interface {
	PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

// TagObject applies the Project cost-allocation tag to an existing object.
// Artifacts copied from the render node with the AWS CLI are tagged this way
// after they land.
func TagObject(ctx context.Context, client TaggingAPI, bucket, key string) error {
	_, err := client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: &bucket,
		Key:    &key,
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String("Project"), Value: aws.String("animeutopia")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutObjectTagging: %w", err)
	}
	return nil
}
