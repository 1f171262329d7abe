// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"checkout/internal/pkg/logger"

	"github.com/go-zookeeper/zk"
)

const defaultLockRoot = "/checkout_locks"

// Locker 基于临时顺序节点实现 keylock.Locker，每个 key 对应 root 下的一个目录。
type Locker struct {
	conn *zk.Conn
	root string
}

// Connect 连接 ZooKeeper 集群，servers 为逗号分隔的地址。
func Connect(servers string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(strings.Split(servers, ","), sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper %s: %w", servers, err)
	}
	return conn, nil
}

func NewLocker(conn *zk.Conn, root string) (*Locker, error) {
	if root == "" {
		root = defaultLockRoot
	}
	if err := ensurePath(conn, root); err != nil {
		return nil, err
	}
	return &Locker{conn: conn, root: root}, nil
}

func ensurePath(conn *zk.Conn, path string) error {
	_, err := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create lock node %s: %w", path, err)
	}
	return nil
}

// Lock 创建自己的顺序节点，若不是最小节点则监听前一个节点，直到获得锁或 ctx 结束。
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockPath := l.root + "/" + sanitize(key)
	if err := ensurePath(l.conn, lockPath); err != nil {
		return nil, err
	}

	nodePath, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("create sequential node: %w", err)
	}
	myNode := strings.TrimPrefix(nodePath, lockPath+"/")

	unlock := func() {
		if err := l.conn.Delete(nodePath, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			logger.Ctx(ctx).Error().Err(err).Str("node", nodePath).Msg("failed to delete lock node")
		}
	}

	for {
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("list lock children: %w", err)
		}
		sortBySequence(children)

		prev, isFirst, found := predecessor(children, myNode)
		if !found {
			return nil, fmt.Errorf("lock node %s disappeared", nodePath)
		}
		if isFirst {
			return unlock, nil
		}

		exists, _, events, err := l.conn.ExistsW(lockPath + "/" + prev)
		if err != nil {
			unlock()
			return nil, fmt.Errorf("watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-events:
		case <-ctx.Done():
			unlock()
			return nil, ctx.Err()
		}
	}
}

// sanitize 把 key 中的 "/" 换掉，保证每个 key 只占一层目录。
func sanitize(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

// sequence 取节点名末尾的 10 位序号。受保护节点带有 _c_<guid>- 前缀，不能直接按字典序排。
func sequence(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}

func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequence(children[i]) < sequence(children[j])
	})
}

func predecessor(sorted []string, node string) (prev string, isFirst, found bool) {
	for i, child := range sorted {
		if child != node {
			continue
		}
		if i == 0 {
			return "", true, true
		}
		return sorted[i-1], false, true
	}
	return "", false, false
}
