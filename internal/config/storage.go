package config

// StorageConfig holds file storage configuration for the catalog, documents and manifests.
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`      // "local", "s3", or "git"
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"` // Base directory for local storage

	S3Bucket       string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix       string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region       string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Profile      string `env:"STORAGE_S3_PROFILE" yaml:"s3_profile"`
	S3Endpoint     string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"` // MinIO / localstack
	S3UsePathStyle bool   `env:"STORAGE_S3_PATH_STYLE" yaml:"s3_use_path_style"`

	GitPath         string `env:"STORAGE_GIT_PATH" yaml:"git_path"`
	GitRemoteURL    string `env:"STORAGE_GIT_REMOTE_URL" yaml:"git_remote_url"`
	GitBranch       string `env:"STORAGE_GIT_BRANCH" yaml:"git_branch" default:"main"`
	GitAuthorName   string `env:"STORAGE_GIT_AUTHOR_NAME" yaml:"git_author_name"`
	GitAuthorEmail  string `env:"STORAGE_GIT_AUTHOR_EMAIL" yaml:"git_author_email"`
	GitAuthUsername string `env:"STORAGE_GIT_AUTH_USERNAME" yaml:"git_auth_username"`
	GitAuthPassword string `env:"STORAGE_GIT_AUTH_PASSWORD" yaml:"-"`
}
