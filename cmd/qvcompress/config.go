package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/qvcompress/blobstore/minio"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags. Flags set explicitly win.
type fileConfig struct {
	Features       string `yaml:"features"`
	ChunkSize      int    `yaml:"chunk_size"`
	Seed           int64  `yaml:"seed"`
	MaxIterations  int    `yaml:"max_iterations"`
	Init           string `yaml:"init"`
	Workers        int    `yaml:"workers"`
	MemoryLimit    int64  `yaml:"memory_limit"`
	WriteRateLimit int64  `yaml:"write_rate_limit"`
	IORateLimit    int64  `yaml:"io_rate_limit"`
	Compression    string `yaml:"compression"`
	Codec          string `yaml:"codec"`
	LogFormat      string `yaml:"log_format"`
	Debug          bool   `yaml:"debug"`

	S3 struct {
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"s3"`

	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Secure    bool   `yaml:"secure"`
		Region    string `yaml:"region"`
	} `yaml:"minio"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *fileConfig) minio() minio.Config {
	return minio.Config{
		Endpoint:  c.MinIO.Endpoint,
		AccessKey: c.MinIO.AccessKey,
		SecretKey: c.MinIO.SecretKey,
		Secure:    c.MinIO.Secure,
		Region:    c.MinIO.Region,
	}
}
