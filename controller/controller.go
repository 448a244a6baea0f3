package controller

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/tidwall/grect"
	"github.com/tidwall/match"
	"github.com/tidwall/redcon"
	"github.com/tidwall/redlog"

	"github.com/zycbobby/quadtree"
)

var (
	errSyntax      = errors.New("ERR syntax error")
	errInvalidRect = errors.New("ERR invalid rectangle")
	errNoIndex     = errors.New("ERR no such index")
	errIndexExists = errors.New("ERR index already exists")
	errNotAnInt    = errors.New("ERR value is not an integer or out of range")
)

func errWrongNumArgs(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

type indexT struct {
	Key  string
	Tree *quadtree.Tree
}

func (idx *indexT) Less(item btree.Item) bool {
	return idx.Key < item.(*indexT).Key
}

// Controller serves named quadtree indexes over the Redis protocol. All
// commands run under a single lock; the trees themselves are unguarded.
type Controller struct {
	mu      sync.RWMutex
	log     *redlog.Logger
	indexes *btree.BTree
}

// New creates a controller with no indexes. A nil logger discards all output.
func New(log *redlog.Logger) *Controller {
	if log == nil {
		log = redlog.New(ioutil.Discard)
	}
	return &Controller{
		log:     log,
		indexes: btree.New(16),
	}
}

// ListenAndServe starts a server at the specified address.
func (c *Controller) ListenAndServe(addr string) error {
	c.log.Printf("serving at %s", addr)
	return c.server(addr).ListenAndServe()
}

// ListenServeAndSignal is like ListenAndServe but sends nil or an error to
// signal once the listener is ready.
func (c *Controller) ListenServeAndSignal(addr string, signal chan error) error {
	c.log.Printf("serving at %s", addr)
	return c.server(addr).ListenServeAndSignal(signal)
}

func (c *Controller) server(addr string) *redcon.Server {
	return redcon.NewServer(addr, c.handleCommand,
		func(conn redcon.Conn) bool {
			c.log.Debugf("accept: %s", conn.RemoteAddr())
			return true
		},
		func(conn redcon.Conn, err error) {
			c.log.Debugf("closed: %s, err: %v", conn.RemoteAddr(), err)
		},
	)
}

func (c *Controller) setIndex(key string, tree *quadtree.Tree) {
	c.indexes.ReplaceOrInsert(&indexT{Key: key, Tree: tree})
}

func (c *Controller) getIndex(key string) *quadtree.Tree {
	item := c.indexes.Get(&indexT{Key: key})
	if item == nil {
		return nil
	}
	return item.(*indexT).Tree
}

func (c *Controller) deleteIndex(key string) *quadtree.Tree {
	item := c.indexes.Delete(&indexT{Key: key})
	if item == nil {
		return nil
	}
	return item.(*indexT).Tree
}

func (c *Controller) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError(errSyntax.Error())
		return
	}
	var err error
	switch strings.ToLower(string(cmd.Args[0])) {
	default:
		err = fmt.Errorf("ERR unknown command '%s'", cmd.Args[0])
	case "ping":
		err = c.doPing(conn, cmd)
	case "echo":
		err = c.doEcho(conn, cmd)
	case "quit":
		conn.WriteString("OK")
		conn.Close()
		return
	case "create":
		err = c.doCreate(conn, cmd)
	case "drop":
		err = c.doDrop(conn, cmd)
	case "keys":
		err = c.doKeys(conn, cmd)
	case "insert":
		err = c.doInsert(conn, cmd)
	case "search":
		err = c.doSearch(conn, cmd)
	case "count":
		err = c.doCount(conn, cmd)
	case "bounds":
		err = c.doBounds(conn, cmd)
	case "nodes":
		err = c.doNodes(conn, cmd)
	case "clear":
		err = c.doClear(conn, cmd)
	case "flushdb":
		err = c.doFlushdb(conn, cmd)
	}
	if err != nil {
		conn.WriteError(err.Error())
	}
}

// parseRect reads a rectangle in the bracket syntax "[minx miny],[maxx maxy]".
func parseRect(arg []byte) (x, y, w, h float64, err error) {
	r := grect.Get(string(arg))
	if len(r.Min) < 2 || len(r.Max) < 2 {
		return 0, 0, 0, 0, errInvalidRect
	}
	return r.Min[0], r.Min[1], r.Max[0] - r.Min[0], r.Max[1] - r.Min[1], nil
}

func rectString(x, y, w, h float64) string {
	r := grect.Rect{Min: []float64{x, y}, Max: []float64{x + w, y + h}}
	return r.String()
}

func (c *Controller) doPing(conn redcon.Conn, cmd redcon.Command) error {
	switch len(cmd.Args) {
	default:
		return errWrongNumArgs("ping")
	case 1:
		conn.WriteString("PONG")
	case 2:
		conn.WriteBulk(cmd.Args[1])
	}
	return nil
}

func (c *Controller) doEcho(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("echo")
	}
	conn.WriteBulk(cmd.Args[1])
	return nil
}

// CREATE key rect [maxitems maxdepth]
func (c *Controller) doCreate(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 3 && len(cmd.Args) != 5 {
		return errWrongNumArgs("create")
	}
	key := string(cmd.Args[1])
	x, y, w, h, err := parseRect(cmd.Args[2])
	if err != nil {
		return err
	}
	var cfg = quadtree.Config{X: x, Y: y, W: w, H: h}
	if len(cmd.Args) == 5 {
		maxItems, err := strconv.Atoi(string(cmd.Args[3]))
		if err != nil || maxItems < 0 {
			return errNotAnInt
		}
		maxDepth, err := strconv.Atoi(string(cmd.Args[4]))
		if err != nil || maxDepth < 0 {
			return errNotAnInt
		}
		cfg.MaxItems, cfg.MaxDepth = maxItems, maxDepth
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getIndex(key) != nil {
		return errIndexExists
	}
	c.setIndex(key, quadtree.New(cfg))
	c.log.Verbosef("created index '%s' %s", key, rectString(x, y, w, h))
	conn.WriteString("OK")
	return nil
}

// DROP key
func (c *Controller) doDrop(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("drop")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteIndex(string(cmd.Args[1])) == nil {
		conn.WriteInt(0)
	} else {
		conn.WriteInt(1)
	}
	return nil
}

// KEYS pattern
func (c *Controller) doKeys(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("keys")
	}
	pattern := string(cmd.Args[1])
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	c.indexes.Ascend(func(item btree.Item) bool {
		key := item.(*indexT).Key
		if match.Match(key, pattern) {
			keys = append(keys, key)
		}
		return true
	})
	conn.WriteArray(len(keys))
	for _, key := range keys {
		conn.WriteBulkString(key)
	}
	return nil
}

// INSERT key rect [rect ...]
func (c *Controller) doInsert(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) < 3 {
		return errWrongNumArgs("insert")
	}
	items := make([]quadtree.Item, 0, len(cmd.Args)-2)
	for _, arg := range cmd.Args[2:] {
		x, y, w, h, err := parseRect(arg)
		if err != nil {
			return err
		}
		items = append(items, &quadtree.Rect{X: x, Y: y, W: w, H: h})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	tree.InsertAll(items)
	conn.WriteInt(len(items))
	return nil
}

// SEARCH key rect
func (c *Controller) doSearch(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 3 {
		return errWrongNumArgs("search")
	}
	x, y, w, h, err := parseRect(cmd.Args[2])
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	var rects []string
	tree.Retrieve(&quadtree.Rect{X: x, Y: y, W: w, H: h},
		func(item quadtree.Item) bool {
			rects = append(rects, rectString(item.Rect()))
			return true
		})
	conn.WriteArray(len(rects))
	for _, rect := range rects {
		conn.WriteBulkString(rect)
	}
	return nil
}

// COUNT key
func (c *Controller) doCount(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("count")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	conn.WriteInt(tree.Count())
	return nil
}

// BOUNDS key
func (c *Controller) doBounds(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("bounds")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	conn.WriteBulkString(rectString(tree.Bounds()))
	return nil
}

// NODES key
// Replies with the bounds of every node, depth first in quadrant order.
// Useful for rendering the quadrant grid.
func (c *Controller) doNodes(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("nodes")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	var rects []string
	var walk func(n *quadtree.Node)
	walk = func(n *quadtree.Node) {
		rects = append(rects, rectString(n.Rect()))
		for _, child := range n.Nodes() {
			walk(child)
		}
	}
	walk(tree.Root())
	conn.WriteArray(len(rects))
	for _, rect := range rects {
		conn.WriteBulkString(rect)
	}
	return nil
}

// CLEAR key
func (c *Controller) doClear(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 2 {
		return errWrongNumArgs("clear")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tree := c.getIndex(string(cmd.Args[1]))
	if tree == nil {
		return errNoIndex
	}
	tree.Clear()
	conn.WriteString("OK")
	return nil
}

// FLUSHDB
func (c *Controller) doFlushdb(conn redcon.Conn, cmd redcon.Command) error {
	if len(cmd.Args) != 1 {
		return errWrongNumArgs("flushdb")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = btree.New(16)
	conn.WriteString("OK")
	return nil
}
