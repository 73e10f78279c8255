package commands

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/spf13/cobra"

	"github.com/openshift/assisted-test-framework/internal/cluster"
	artifacts "github.com/openshift/assisted-test-framework/internal/pkg/aws"
)

// Logs groups the cluster log commands.
func Logs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Collect cluster logs and manage uploaded bundles",
	}

	cmd.AddCommand(logsCollect())
	cmd.AddCommand(logsList())
	cmd.AddCommand(logsDelete())

	return cmd
}

func logsCollect() *cobra.Command {
	var (
		dir    string
		upload bool
	)

	c := &cobra.Command{
		Use:   "collect",
		Short: "Download the cluster log bundle and optionally upload it to S3",
		RunE: func(c *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			cl, err := cluster.NewClusterFromEnv(env)
			if err != nil {
				return err
			}

			path, err := cl.CollectLogs(c.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), path)

			if !upload {
				return nil
			}

			s3Client, err := artifactsClient(env.ArtifactsBucket, env.AWSRegion)
			if err != nil {
				return err
			}

			url, err := s3Client.UploadFile(env.ArtifactsBucket, cl.ID(), path)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), url)

			return nil
		},
	}

	c.Flags().StringVar(&dir, "dir", ".", "directory to write the log bundle to")
	c.Flags().BoolVar(&upload, "upload", false, "upload the bundle to ARTIFACTS_BUCKET")

	return c
}

func logsList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the uploaded log bundles of the cluster",
		RunE: func(c *cobra.Command, _ []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			s3Client, err := artifactsClient(env.ArtifactsBucket, env.AWSRegion)
			if err != nil {
				return err
			}

			objects, err := s3Client.GetObjects(env.ArtifactsBucket, env.ClusterID)
			if err != nil {
				return err
			}

			for _, o := range objects {
				fmt.Fprintf(c.OutOrStdout(), "%s\t%d\n", aws.StringValue(o.Key), aws.Int64Value(o.Size))
			}

			return nil
		},
	}
}

func logsDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an uploaded log bundle of the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}

			s3Client, err := artifactsClient(env.ArtifactsBucket, env.AWSRegion)
			if err != nil {
				return err
			}

			return s3Client.DeleteS3Object(env.ArtifactsBucket, env.ClusterID, args[0])
		},
	}
}

func artifactsClient(bucket, region string) (*artifacts.Client, error) {
	if bucket == "" {
		return nil, fmt.Errorf("ARTIFACTS_BUCKET is not set")
	}

	return artifacts.AddClient(region)
}
