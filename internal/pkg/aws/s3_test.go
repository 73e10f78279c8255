package aws

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeS3 struct {
	s3iface.S3API

	objects map[string][]byte
	listed  *s3.ListObjectsInput
	headErr error
}

func (f *fakeS3) PutObject(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = data

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjects(in *s3.ListObjectsInput) (*s3.ListObjectsOutput, error) {
	f.listed = in

	var contents []*s3.Object
	for key := range f.objects {
		contents = append(contents, &s3.Object{Key: aws.String(key)})
	}

	return &s3.ListObjectsOutput{Contents: contents}, nil
}

func (f *fakeS3) HeadObject(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.StringValue(in.Key)]; !ok {
		return nil, awserr.New("NotFound", "Not Found", nil)
	}

	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.StringValue(in.Key))

	return &s3.DeleteObjectOutput{}, nil
}

var _ = Describe("S3 artifacts", func() {
	var (
		fake   *fakeS3
		client *Client
	)

	BeforeEach(func() {
		fake = &fakeS3{objects: map[string][]byte{}}
		client = NewClient(fake)
	})

	It("uploads a file under its folder", func() {
		path := filepath.Join(GinkgoT().TempDir(), "ci_logs.tar")
		Expect(os.WriteFile(path, []byte("LOGS"), 0o600)).To(Succeed())

		url, err := client.UploadFile("artifacts", "run-42", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(Equal("s3://artifacts/run-42/ci_logs.tar"))
		Expect(fake.objects).To(HaveKeyWithValue("run-42/ci_logs.tar", []byte("LOGS")))
	})

	It("fails for a missing file", func() {
		_, err := client.UploadFile("artifacts", "", filepath.Join(GinkgoT().TempDir(), "missing"))
		Expect(err).To(HaveOccurred())
		Expect(fake.objects).To(BeEmpty())
	})

	It("lists objects under a folder", func() {
		fake.objects["run-42/a.tar"] = nil

		objects, err := client.GetObjects("artifacts", "run-42")
		Expect(err).NotTo(HaveOccurred())
		Expect(objects).To(HaveLen(1))
		Expect(aws.StringValue(fake.listed.Prefix)).To(Equal("run-42/"))
	})

	It("deletes objects and tolerates missing ones", func() {
		fake.objects["run-42/a.tar"] = nil

		Expect(client.DeleteS3Object("artifacts", "run-42", "a.tar")).To(Succeed())
		Expect(fake.objects).To(BeEmpty())
		Expect(client.DeleteS3Object("artifacts", "run-42", "a.tar")).To(Succeed())
	})

	It("does not mistake a failed lookup for a deleted object", func() {
		fake.objects["run-42/a.tar"] = nil
		fake.headErr = awserr.New("AccessDenied", "Access Denied", nil)

		err := client.DeleteS3Object("artifacts", "run-42", "a.tar")
		Expect(err).To(MatchError(ContainSubstring("AccessDenied")))
		Expect(fake.objects).To(HaveKey("run-42/a.tar"))

		fake.headErr = errors.New("connection reset")
		Expect(client.DeleteS3Object("artifacts", "run-42", "a.tar")).To(MatchError(ContainSubstring("connection reset")))
	})
})
