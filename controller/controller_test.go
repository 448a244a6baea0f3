package controller

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPort = 7461

var startOnce sync.Once

func startServer(t *testing.T) {
	startOnce.Do(func() {
		signal := make(chan error)
		go func() {
			if err := New(nil).ListenServeAndSignal(
				fmt.Sprintf(":%d", testPort), signal); err != nil {
				panic(err)
			}
		}()
		if err := <-signal; err != nil {
			t.Fatalf("server failed to start: %v", err)
		}
	})
}

func dial(t *testing.T) redis.Conn {
	startServer(t)
	conn, err := redis.Dial("tcp", fmt.Sprintf(":%d", testPort),
		redis.DialConnectTimeout(time.Second))
	require.NoError(t, err)
	_, err = conn.Do("FLUSHDB")
	require.NoError(t, err)
	return conn
}

func TestPingEcho(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	res, err := redis.String(conn.Do("PING"))
	require.NoError(t, err)
	assert.Equal(t, "PONG", res)
	res, err = redis.String(conn.Do("PING", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", res)
	res, err = redis.String(conn.Do("ECHO", "quadtree"))
	require.NoError(t, err)
	assert.Equal(t, "quadtree", res)
}

func TestCreateDropKeys(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	res, err := redis.String(conn.Do("CREATE", "fleet", "[0 0],[100 100]"))
	require.NoError(t, err)
	assert.Equal(t, "OK", res)
	_, err = conn.Do("CREATE", "fleet", "[0 0],[100 100]")
	assert.EqualError(t, err, "ERR index already exists")
	_, err = redis.String(conn.Do("CREATE", "props", "[0 0],[512 512]", "8", "6"))
	require.NoError(t, err)
	keys, err := redis.Strings(conn.Do("KEYS", "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fleet", "props"}, keys)
	keys, err = redis.Strings(conn.Do("KEYS", "f*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fleet"}, keys)
	n, err := redis.Int(conn.Do("DROP", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = redis.Int(conn.Do("DROP", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertSearch(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	_, err := conn.Do("CREATE", "fleet", "[0 0],[100 100]")
	require.NoError(t, err)
	n, err := redis.Int(conn.Do("INSERT", "fleet",
		"[10 10],[15 15]", "[20 20],[25 25]", "[60 60],[65 65]"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	res, err := redis.Strings(conn.Do("SEARCH", "fleet", "[0 0],[45 45]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[10 10],[15 15]", "[20 20],[25 25]"}, res)
	res, err = redis.Strings(conn.Do("SEARCH", "fleet", "[55 55],[70 70]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[60 60],[65 65]"}, res)
	count, err := redis.Int(conn.Do("COUNT", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSearchReportsStraddlers(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	_, err := conn.Do("CREATE", "fleet", "[0 0],[100 100]")
	require.NoError(t, err)
	// the first rectangle crosses both midlines and stays pinned at the
	// root, so every search reports it
	_, err = conn.Do("INSERT", "fleet",
		"[45 45],[55 55]", "[10 10],[12 12]", "[80 10],[82 12]")
	require.NoError(t, err)
	res, err := redis.Strings(conn.Do("SEARCH", "fleet", "[90 90],[95 95]"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[45 45],[55 55]"}, res)
}

func TestBoundsNodesClear(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	_, err := conn.Do("CREATE", "fleet", "[0 0],[100 100]")
	require.NoError(t, err)
	bounds, err := redis.String(conn.Do("BOUNDS", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, "[0 0],[100 100]", bounds)
	// an empty tree is a single node
	nodes, err := redis.Strings(conn.Do("NODES", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[0 0],[100 100]"}, nodes)
	// three separated rectangles exceed the default threshold of two
	_, err = conn.Do("INSERT", "fleet",
		"[10 10],[15 15]", "[20 20],[25 25]", "[60 60],[65 65]")
	require.NoError(t, err)
	nodes, err = redis.Strings(conn.Do("NODES", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[0 0],[100 100]",
		"[0 0],[50 50]",
		"[50 0],[100 50]",
		"[0 50],[50 100]",
		"[50 50],[100 100]",
	}, nodes)
	res, err := redis.String(conn.Do("CLEAR", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, "OK", res)
	count, err := redis.Int(conn.Do("COUNT", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	nodes, err = redis.Strings(conn.Do("NODES", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[0 0],[100 100]"}, nodes)
	// bounds survive a clear
	bounds, err = redis.String(conn.Do("BOUNDS", "fleet"))
	require.NoError(t, err)
	assert.Equal(t, "[0 0],[100 100]", bounds)
}

func TestErrors(t *testing.T) {
	conn := dial(t)
	defer conn.Close()
	_, err := conn.Do("WHAT")
	assert.EqualError(t, err, "ERR unknown command 'WHAT'")
	_, err = conn.Do("CREATE", "fleet")
	assert.EqualError(t, err, "ERR wrong number of arguments for 'create' command")
	_, err = conn.Do("CREATE", "fleet", "nonsense")
	assert.EqualError(t, err, "ERR invalid rectangle")
	_, err = conn.Do("CREATE", "fleet", "[0 0],[100 100]", "two", "4")
	assert.EqualError(t, err, "ERR value is not an integer or out of range")
	_, err = conn.Do("SEARCH", "nope", "[0 0],[10 10]")
	assert.EqualError(t, err, "ERR no such index")
	_, err = conn.Do("INSERT", "nope", "[0 0],[10 10]")
	assert.EqualError(t, err, "ERR no such index")
	_, err = conn.Do("COUNT")
	assert.EqualError(t, err, "ERR wrong number of arguments for 'count' command")
}
