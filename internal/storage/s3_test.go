package storage

import "testing"

func TestNewWithoutCredentials(t *testing.T) {
	c, err := New(Options{Bucket: "media"})
	if c != nil || err != nil {
		t.Errorf("New() = %v, %v; want nil, nil", c, err)
	}

	if _, err := New(Options{Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s"}); err == nil {
		t.Error("a missing bucket should be an error")
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "path style",
			opts: Options{Endpoint: "http://minio:9000/", AccessKey: "k", SecretKey: "s", Bucket: "media"},
			want: "http://minio:9000/media/2026/01/a.jpg",
		},
		{
			name: "public base",
			opts: Options{Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s", Bucket: "media", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/2026/01/a.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := c.URL("2026/01/a.jpg"); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
