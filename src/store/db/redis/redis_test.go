package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-mcp/relay/src/store/storetest"
)

// Set RELAY_TEST_REDIS_URL (e.g. redis://localhost:6379/15) to run the suite.
func TestDriver(t *testing.T) {
	url := os.Getenv("RELAY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RELAY_TEST_REDIS_URL not set")
	}
	prefix := fmt.Sprintf("relaytest:%d", time.Now().UnixNano())
	driver, err := NewDB(context.Background(), Config{URL: url, Prefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		db := driver.(*DB)
		ctx := context.Background()
		keys, _ := db.rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			db.rdb.Del(ctx, keys...)
		}
		driver.Close()
	})

	storetest.Run(t, driver)
}

func TestKeyLayout(t *testing.T) {
	d := &DB{prefix: "relay"}
	assert.Equal(t, "relay:user:7", d.userKey(7))
	assert.Equal(t, "relay:user:email:a@b.c", d.emailKey("a@b.c"))
	assert.Equal(t, "relay:messages:7", d.messagesKey(7))
	assert.Equal(t, "relay:seq:message", d.seqKey("message"))
}

func TestNewDBRejectsBadURL(t *testing.T) {
	_, err := NewDB(context.Background(), Config{URL: "://nope"})
	assert.Error(t, err)
}
