package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_Key(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		parts     []string
		want      string
	}{
		{name: "queue key", namespace: "edupulse", parts: []string{"photo-jobs"}, want: "edupulse:photo-jobs"},
		{name: "nested", namespace: "edupulse", parts: []string{"ratelimit", "teacher-1"}, want: "edupulse:ratelimit:teacher-1"},
		{name: "stray colons trimmed", namespace: "edupulse:", parts: []string{":photo-jobs:"}, want: "edupulse:photo-jobs"},
		{name: "empty parts skipped", namespace: "edupulse", parts: []string{"", "photo-jobs"}, want: "edupulse:photo-jobs"},
		{name: "no namespace", parts: []string{"photo-jobs"}, want: "photo-jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRedis(RedisOptions{Addr: "127.0.0.1:1", Namespace: tt.namespace})
			t.Cleanup(func() { _ = r.Close() })
			assert.Equal(t, tt.want, r.Key(tt.parts...))
		})
	}
}

func TestRedis_HealthyAndClose(t *testing.T) {
	var nilRedis *Redis
	assert.False(t, nilRedis.Healthy(context.Background()))
	assert.NoError(t, nilRedis.Close())
	assert.Equal(t, "photo-jobs", nilRedis.Key("photo-jobs"))

	r := NewRedis(RedisOptions{Addr: "127.0.0.1:1", Password: "secret", DB: 3})
	assert.Equal(t, "secret", r.Client.Options().Password)
	assert.Equal(t, 3, r.Client.Options().DB)
	assert.False(t, r.Healthy(context.Background()), "nothing listens on port 1")
	require.NoError(t, r.Close())
}
