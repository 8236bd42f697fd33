// Package s3archive stores archived record files in S3-compatible
// storage (S3, R2, Backblaze, minio).
package s3archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kjk/recstore/atomicfile"
	"github.com/kjk/recstore/log"
	"github.com/kjk/recstore/repair"
)

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// use http instead of https, for local minio
	Insecure     bool
	RequestTrace io.Writer
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return errors.New("must provide Access, Secret, Bucket and Endpoint in config")
	}
	return nil
}

type Client struct {
	Client *minio.Client
	Bucket string
}

func ctx() context.Context {
	return context.Background()
}

func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := config
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx(), c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Client{
		Client: mc,
		Bucket: c.Bucket,
	}, nil
}

func (c *Client) URLForPath(remotePath string) string {
	u := c.Client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, c.Bucket, strings.TrimPrefix(remotePath, "/"))
}

func (c *Client) Exists(remotePath string) bool {
	_, err := c.Client.StatObject(ctx(), c.Bucket, remotePath, minio.StatObjectOptions{})
	return err == nil
}

func contentTypeFor(remotePath string) string {
	switch strings.ToLower(filepath.Ext(remotePath)) {
	case repair.ExtZstd:
		return "application/zstd"
	case repair.ExtBrotli:
		return "application/x-brotli"
	case repair.ExtGzip:
		return "application/gzip"
	}
	if ct := mime.TypeByExtension(filepath.Ext(remotePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (c *Client) UploadFile(remotePath string, localPath string) (minio.UploadInfo, error) {
	opts := minio.PutObjectOptions{
		ContentType: contentTypeFor(remotePath),
	}
	return c.Client.FPutObject(ctx(), c.Bucket, remotePath, localPath, opts)
}

// RemotePathFor returns a unique remote path for an archive of storePath
// e.g. "archives/points.bin-20240307-235900.zst"
func RemotePathFor(prefix string, storePath string, t time.Time, ext string) string {
	name := filepath.Base(storePath) + "-" + t.UTC().Format("20060102-150405") + ext
	return path.Join(prefix, name)
}

// UploadArchive compresses storePath (see repair.Archive) and uploads it
// under prefix. Returns the remote path.
// The store using the file should be closed or at least not written to.
func (c *Client) UploadArchive(prefix string, storePath string, ext string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "recstore-archive-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(storePath)+ext)
	if err = repair.Archive(tmpPath, storePath); err != nil {
		return "", err
	}
	remotePath := RemotePathFor(prefix, storePath, time.Now(), ext)
	info, err := c.UploadFile(remotePath, tmpPath)
	if err != nil {
		return "", fmt.Errorf("upload of '%s' as '%s' failed with '%w'", tmpPath, remotePath, err)
	}
	log.Logf("s3archive: uploaded '%s' as '%s' (%d bytes)\n", storePath, c.URLForPath(remotePath), info.Size)
	log.Event("recstore_archive", "path", storePath, "remote", remotePath, "size", info.Size)
	return remotePath, nil
}

// DownloadFile downloads remotePath to dstPath. dstPath only appears
// once the download is complete.
func (c *Client) DownloadFile(dstPath string, remotePath string) error {
	obj, err := c.Client.GetObject(ctx(), c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.Cancel()
	if _, err = io.Copy(f, obj); err != nil {
		return err
	}
	return f.Commit()
}

// ListArchives returns remote paths of all objects under prefix
func (c *Client) ListArchives(prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	var res []string
	for obj := range c.Client.ListObjects(ctx(), c.Bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		res = append(res, obj.Key)
	}
	return res, nil
}

func (c *Client) Remove(remotePath string) error {
	return c.Client.RemoveObject(ctx(), c.Bucket, remotePath, minio.RemoveObjectOptions{})
}
