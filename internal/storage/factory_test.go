package storage

import "testing"

func TestDetectStoreType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StoreType
	}{
		{endpoint: "accountid.r2.cloudflarestorage.com", want: StoreTypeR2},
		{endpoint: "s3.us-east-1.amazonaws.com", want: StoreTypeS3},
		{endpoint: "S3.AMAZONAWS.COM", want: StoreTypeS3},
		{endpoint: "localhost:9000", want: StoreTypeS3Compatible},
		{endpoint: "minio.internal:9000", want: StoreTypeS3Compatible},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := detectStoreType(tt.endpoint); got != tt.want {
				t.Errorf("detectStoreType(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}
