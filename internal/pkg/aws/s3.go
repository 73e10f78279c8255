package aws

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

// UploadFile uploads the file at filePath to bucket under folder and returns
// the s3 url of the object.
func (c Client) UploadFile(bucket, folder, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	key := objectKey(folder, filepath.Base(filePath))
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}

	if _, err := c.s3.PutObject(input); err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", filePath, bucket, err)
	}

	url := fmt.Sprintf("s3://%s/%s", bucket, key)
	resources.LogLevel("info", "uploaded %s to %s", filePath, url)

	return url, nil
}

// GetObjects lists the objects of bucket under folder.
func (c Client) GetObjects(bucket, folder string) ([]*s3.Object, error) {
	input := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
	}
	if folder != "" {
		input.Prefix = aws.String(folder + "/")
	}

	output, err := c.s3.ListObjects(input)
	if err != nil {
		return nil, err
	}

	return output.Contents, nil
}

// DeleteS3Object removes folder/objectName from bucket. A missing object is
// not an error.
func (c Client) DeleteS3Object(bucket, folder, objectName string) error {
	key := objectKey(folder, objectName)

	headInput := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	if _, err := c.s3.HeadObject(headInput); err != nil {
		if isNotFound(err) {
			resources.LogLevel("info", "object %s doesn't exist in bucket %s (already deleted)", key, bucket)
			return nil
		}

		return fmt.Errorf("failed to check object %s in bucket %s: %w", key, bucket, err)
	}

	delInput := &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	if _, err := c.s3.DeleteObject(delInput); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	resources.LogLevel("info", "deleted object with key %s from bucket %s", key, bucket)

	return nil
}

// isNotFound reports whether err is the service telling that an object does
// not exist. HeadObject has no body, so it answers with a bare NotFound code.
func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}

	switch aerr.Code() {
	case "NotFound", s3.ErrCodeNoSuchKey:
		return true
	}

	return false
}

func objectKey(folder, name string) string {
	if folder == "" {
		return name
	}

	return path.Join(folder, name)
}
