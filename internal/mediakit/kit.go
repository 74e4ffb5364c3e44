package mediakit

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/prabhakardwivedi/corpsite/internal/log"
	"github.com/prabhakardwivedi/corpsite/internal/xerrors"
)

var (
	ErrUnknownAsset  = errors.New("mediakit: unknown asset")
	ErrNotConfigured = errors.New("mediakit: asset storage not configured")
)

const DefaultURLTTL = 15 * time.Minute

// Presigner is the subset of *s3.PresignClient used here.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Presigner builds a presign client from awsCfg, or from the default
// credential chain when awsCfg is nil.
func NewS3Presigner(ctx context.Context, awsCfg *aws.Config) (*s3.PresignClient, error) {
	var cfg aws.Config
	if awsCfg != nil {
		cfg = *awsCfg
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "mediakit: load AWS config")
		}
	}
	return s3.NewPresignClient(s3.NewFromConfig(cfg)), nil
}

type Options struct {
	Logger    log.Logger
	Bucket    string
	Prefix    string
	URLTTL    time.Duration
	Presigner Presigner
	Assets    []Asset
	Metrics   Metrics
	Now       func() time.Time
}

type Metrics interface {
	IncMediaKitDownload(asset string)
}

type Kit struct {
	logger    log.Logger
	bucket    string
	prefix    string
	ttl       time.Duration
	presigner Presigner
	assets    []Asset
	metrics   Metrics
	now       func() time.Time

	mu      sync.Mutex
	profile *renderedProfile
}

func New(opts Options) *Kit {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	if opts.Assets == nil {
		opts.Assets = DefaultAssets()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Kit{
		logger:    opts.Logger,
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		ttl:       opts.URLTTL,
		presigner: opts.Presigner,
		assets:    opts.Assets,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

func (k *Kit) storageReady() bool { return k.bucket != "" && k.presigner != nil }

// Assets lists what can be downloaded right now. Stored assets are hidden
// while no bucket is configured.
func (k *Kit) Assets() []Asset {
	out := make([]Asset, 0, len(k.assets))
	for _, a := range k.assets {
		if a.Generated || k.storageReady() {
			out = append(out, a)
		}
	}
	return out
}

func (k *Kit) find(name string) (Asset, bool) {
	for _, a := range k.assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

func (k *Kit) objectKey(a Asset) string {
	if k.prefix == "" {
		return a.Key
	}
	return path.Join(k.prefix, a.Key)
}

// DownloadURL presigns a GET for a stored asset and returns the URL with
// its expiry.
func (k *Kit) DownloadURL(ctx context.Context, name string) (string, time.Time, error) {
	a, ok := k.find(name)
	if !ok || a.Generated {
		return "", time.Time{}, ErrUnknownAsset
	}
	if !k.storageReady() {
		return "", time.Time{}, ErrNotConfigured
	}

	req, err := k.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(k.bucket),
		Key:                        aws.String(k.objectKey(a)),
		ResponseContentDisposition: aws.String(`attachment; filename="` + a.Name + `"`),
	}, s3.WithPresignExpires(k.ttl))
	if err != nil {
		return "", time.Time{}, xerrors.Wrapf(err, "presign %s", a.Name)
	}
	k.countDownload(a.Name)
	return req.URL, k.now().Add(k.ttl), nil
}

func (k *Kit) countDownload(name string) {
	if k.metrics != nil {
		k.metrics.IncMediaKitDownload(name)
	}
}
