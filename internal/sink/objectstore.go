package sink

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	logx "mediafetch/pkg/logx"
)

const defaultEndpoint = "s3.amazonaws.com"

type ObjectStoreConfig struct {
	Endpoint     string
	Region       string
	Bucket       string // used when prefix+catalogue is empty
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
	Insecure     bool // skip TLS verification
	Prefix       string
}

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, path string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStore uploads files to the bucket <prefix><catalogue>, creating it
// when absent.
type ObjectStore struct {
	cfg ObjectStoreConfig
	log logx.Logger

	mu  sync.Mutex
	api objectAPI
}

func NewObjectStore(cfg ObjectStoreConfig, log logx.Logger) *ObjectStore {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ObjectStore{cfg: cfg, log: log.With(logx.String("comp", "sink.object"))}
}

// client connects on first use so a missing endpoint only fails jobs that
// actually save to object storage.
func (o *ObjectStore) client() (objectAPI, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.api != nil {
		return o.api, nil
	}

	endpoint := strings.TrimSpace(o.cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	var creds *credentials.Credentials
	if o.cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(o.cfg.AccessKey, o.cfg.SecretKey, o.cfg.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
		})
	}
	opts := &minio.Options{
		Creds:  creds,
		Secure: o.cfg.UseSSL,
		Region: o.cfg.Region,
	}
	if o.cfg.Insecure && o.cfg.UseSSL {
		tr, err := minio.DefaultTransport(true)
		if err != nil {
			return nil, err
		}
		tr.TLSClientConfig.InsecureSkipVerify = true
		opts.Transport = tr
	}
	c, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	o.api = c
	return c, nil
}

func (o *ObjectStore) bucketFor(catalogue string) (string, error) {
	bucket := o.cfg.Prefix + catalogue
	if bucket == "" {
		bucket = strings.TrimSpace(o.cfg.Bucket)
	}
	if bucket == "" {
		return "", errors.New("object store: no bucket (empty prefix, catalogue and default bucket)")
	}
	return bucket, nil
}

func (o *ObjectStore) ensureBucket(ctx context.Context, api objectAPI, bucket string) error {
	ok, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if ok {
		return nil
	}
	err = api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: o.cfg.Region})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	o.log.Info("bucket created", logx.String("bucket", bucket))
	return nil
}

func (o *ObjectStore) Save(ctx context.Context, paths []string, catalogue string) error {
	bucket, err := o.bucketFor(catalogue)
	if err != nil {
		return err
	}
	api, err := o.client()
	if err != nil {
		return err
	}
	if err := o.ensureBucket(ctx, api, bucket); err != nil {
		return err
	}

	var f failures
	for _, p := range paths {
		name := filepath.Base(p)
		ct := mime.TypeByExtension(filepath.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		if _, err := api.FPutObject(ctx, bucket, name, p, minio.PutObjectOptions{ContentType: ct}); err != nil {
			f.add(p, err)
			continue
		}
		o.log.Debug("object uploaded", logx.String("bucket", bucket), logx.String("object", name))
	}
	if err := f.err(); err != nil {
		o.log.Warn("object upload incomplete", logx.String("bucket", bucket), logx.Int("failed", len(f.reasons)), logx.Int("files", len(paths)))
		return err
	}
	o.log.Info("object upload finished", logx.String("bucket", bucket), logx.Int("files", len(paths)))
	return removeLocal(paths)
}
