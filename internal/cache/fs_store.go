package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Store 管理单个受管仓库的本地目录树，整个进程内每个仓库复用一份实例。
type Store struct {
	fs   billy.Filesystem
	root string
	// onDisk 表示 root 是真实目录，billy 未实现 Change 时回退到 os.Chtimes。
	onDisk bool

	mu    sync.Mutex
	locks map[string]*entryLock
}

// entryLock 通过引用计数在无人持有时回收，避免 locks 无限增长。
type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore 以 root 为根目录构建磁盘仓库，并清理上次进程遗留的暂存目录。
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("repository location required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repository location: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create repository location: %w", err)
	}

	store := NewStoreFS(osfs.New(abs))
	store.root = abs
	store.onDisk = true
	if err := util.RemoveAll(store.fs, StagingDir); err != nil {
		return nil, fmt.Errorf("purge staging area: %w", err)
	}
	return store, nil
}

// NewStoreFS 基于任意 billy 文件系统构建仓库，测试中通常配合 memfs 使用。
func NewStoreFS(fsys billy.Filesystem) *Store {
	return &Store{
		fs:    fsys,
		root:  fsys.Root(),
		locks: make(map[string]*entryLock),
	}
}

// Filesystem 暴露底层文件系统，供诊断与测试读取。
func (s *Store) Filesystem() billy.Filesystem {
	return s.fs
}

// Stat 返回条目信息；目录与缺失文件均视为 ErrNotFound。
func (s *Store) Stat(ctx context.Context, rel string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanPath(rel)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(name)
	if err != nil {
		// 父路径上是普通文件时返回 ENOTDIR，同样视为不存在。
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	entry := s.entry(name, info.Size(), info.ModTime())
	return &entry, nil
}

// Get 打开条目供流式读取，调用方负责关闭 Reader。
func (s *Store) Get(ctx context.Context, rel string) (*ReadResult, error) {
	entry, err := s.Stat(ctx, rel)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(entry.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ReadResult{Entry: *entry, Reader: f}, nil
}

func (s *Store) lockEntry(name string) func() {
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

func (s *Store) touch(name string, modTime time.Time) error {
	if change, ok := s.fs.(billy.Change); ok {
		return change.Chtimes(name, modTime, modTime)
	}
	if s.onDisk {
		return os.Chtimes(filepath.Join(s.root, filepath.FromSlash(name)), modTime, modTime)
	}
	return nil
}

func (s *Store) entry(name string, size int64, modTime time.Time) Entry {
	return Entry{
		Path:      name,
		FilePath:  filepath.Join(s.root, filepath.FromSlash(name)),
		SizeBytes: size,
		ModTime:   modTime,
	}
}

// cleanPath 规范化相对路径，拒绝空路径、越界路径以及暂存目录。
func cleanPath(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	name := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if name == "" || name == "." {
		return "", ErrInvalidPath
	}
	if name == StagingDir || strings.HasPrefix(name, StagingDir+"/") {
		return "", ErrInvalidPath
	}
	return name, nil
}
