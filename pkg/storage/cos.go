package stores

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"VoiceBank/pkg/util"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSStore 腾讯云对象存储
type COSStore struct {
	BucketURL string `env:"COS_BUCKET_URL"`
	SecretID  string `env:"COS_SECRET_ID"`
	SecretKey string `env:"COS_SECRET_KEY"`
	BaseURL   string `env:"COS_PUBLIC_BASE"`

	cli *cos.Client
}

func NewCOSStore() (Store, error) {
	s := &COSStore{
		BucketURL: util.GetEnv("COS_BUCKET_URL"),
		SecretID:  util.GetEnv("COS_SECRET_ID"),
		SecretKey: util.GetEnv("COS_SECRET_KEY"),
		BaseURL:   util.GetEnv("COS_PUBLIC_BASE"),
	}
	u, err := url.Parse(s.BucketURL)
	if err != nil {
		return nil, err
	}
	s.cli = cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  s.SecretID,
			SecretKey: s.SecretKey,
		},
	})
	return s, nil
}

func (s *COSStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	resp, err := s.cli.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (s *COSStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}
	_, err := s.cli.Object.Put(ctx, key, r, opt)
	return err
}

func (s *COSStore) Delete(ctx context.Context, key string) error {
	_, err := s.cli.Object.Delete(ctx, key)
	return err
}

func (s *COSStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.cli.Object.IsExist(ctx, key)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *COSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	marker := ""
	for {
		res, _, err := s.cli.Bucket.Get(ctx, &cos.BucketGetOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, obj := range res.Contents {
			keys = append(keys, obj.Key)
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	return keys, nil
}

func (s *COSStore) PublicURL(key string) string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/") + "/" + key
	}
	return strings.TrimRight(s.BucketURL, "/") + "/" + key
}
