package config

import (
	"time"
)

// Config is the full service configuration. Values are layered as
// struct defaults -> config file -> SQUEEZE_* environment -> flags.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	UI       UIConfig       `mapstructure:"ui"`
	Store    StoreConfig    `mapstructure:"store"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb" default:"32" validate:"min=1,max=1024"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File       string `mapstructure:"file"`
	Console    bool   `mapstructure:"console" default:"true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" default:"100" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" default:"5" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" default:"28" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

type PipelineConfig struct {
	// Encoder names an entry of the encoder registry.
	Encoder   string `mapstructure:"encoder" default:"jpeg" validate:"oneof=jpeg magick"`
	MaxPixels int    `mapstructure:"max_pixels" default:"50000000" validate:"min=1"`
	// MeasureIntermediate re-enables the extra pre-enhancement encode and
	// reports its size next to the final one.
	MeasureIntermediate bool          `mapstructure:"measure_intermediate"`
	Workers             int           `mapstructure:"workers" default:"4" validate:"min=1,max=256"`
	QueueTimeout        time.Duration `mapstructure:"queue_timeout" default:"10s"`
}

type UIConfig struct {
	Title          string `mapstructure:"title" default:"Image Compression and Enhancement Tool"`
	PreviewWidth   uint   `mapstructure:"preview_width" default:"480" validate:"min=16,max=4096"`
	PreviewQuality int    `mapstructure:"preview_quality" default:"80" validate:"min=1,max=100"`
}

type StoreConfig struct {
	ResultTTL       time.Duration `mapstructure:"result_ttl" default:"15m"`
	FailureTTL      time.Duration `mapstructure:"failure_ttl" default:"24h"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" default:"1m"`
}

// DeliveryConfig selects an optional backend that receives a copy of each
// result the user chooses to publish. An empty Backend disables delivery.
type DeliveryConfig struct {
	Backend  string     `mapstructure:"backend" validate:"omitempty,oneof=directServe s3 gcs sftp oss"`
	SubDir   string     `mapstructure:"subdir"`
	ServeDir string     `mapstructure:"serve_dir" default:"./serve"`
	S3       S3Config   `mapstructure:"s3"`
	GCS      GCSConfig  `mapstructure:"gcs"`
	SFTP     SFTPConfig `mapstructure:"sftp"`
	OSS      OSSConfig  `mapstructure:"oss"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	// CredentialsJSON is a base64-encoded service account key.
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type SFTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port" default:"22"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	PrivateKey string `mapstructure:"private_key"`
	RemoteDir  string `mapstructure:"remote_dir"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
}

// Enabled reports whether a delivery backend is configured.
func (d DeliveryConfig) Enabled() bool {
	return d.Backend != ""
}

// AccessInfo flattens the selected backend's settings into the key/value
// form the writer backends consume.
func (d DeliveryConfig) AccessInfo() map[string]string {
	info := map[string]string{"folder": d.SubDir}
	switch d.Backend {
	case "directServe":
		info["baseDir"] = d.ServeDir
	case "s3":
		info["region"] = d.S3.Region
		info["bucket"] = d.S3.Bucket
		info["accessKey"] = d.S3.AccessKey
		info["secretKey"] = d.S3.SecretKey
	case "gcs":
		info["bucket"] = d.GCS.Bucket
		info["credentialsJSON"] = d.GCS.CredentialsJSON
	case "sftp":
		info["host"] = d.SFTP.Host
		info["port"] = d.SFTP.Port
		info["user"] = d.SFTP.User
		info["password"] = d.SFTP.Password
		info["privateKey"] = d.SFTP.PrivateKey
		info["remoteDir"] = d.SFTP.RemoteDir
	case "oss":
		info["endpoint"] = d.OSS.Endpoint
		info["accessKeyID"] = d.OSS.AccessKeyID
		info["accessKeySecret"] = d.OSS.AccessKeySecret
		info["bucket"] = d.OSS.Bucket
	}
	return info
}
