// Package aws stores test artifacts such as cluster log bundles in S3.
package aws

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

type Client struct {
	s3 s3iface.S3API
}

// AddClient opens an S3 session for region using the default credential chain.
func AddClient(region string) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, resources.ReturnLogError("error creating AWS session: %v", err)
	}

	return NewClient(s3.New(sess)), nil
}

// NewClient wraps an existing S3 API.
func NewClient(api s3iface.S3API) *Client {
	return &Client{s3: api}
}
