package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/any-hub/artifact-hub/internal/checksum"
)

// Staging 是一次下载使用的私有暂存目录，与仓库位于同一文件系统，
// 因此提交只需 rename。未提交的内容随 Discard 一起删除。
type Staging struct {
	ID string

	dir   string
	fs    billy.Filesystem
	store *Store
}

// Stage 在 <root>/.staging/<uuid>/ 下创建暂存目录。
func (s *Store) Stage() (*Staging, error) {
	id := uuid.NewString()
	dir := path.Join(StagingDir, id)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	chroot, err := s.fs.Chroot(dir)
	if err != nil {
		return nil, fmt.Errorf("chroot staging dir: %w", err)
	}
	return &Staging{ID: id, dir: dir, fs: chroot, store: s}, nil
}

// Filesystem 返回以暂存目录为根的文件系统，路径与仓库相对路径一致。
func (st *Staging) Filesystem() billy.Filesystem {
	return st.fs
}

// Commit 在条目锁内先提交校验文件、最后 rename 正文，读者不会看到新正文配旧校验文件；
// 未随本次提交暂存的旧校验文件会被删除。条目的修改时间记为提交时刻。
func (st *Staging) Commit(ctx context.Context, rel string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanPath(rel)
	if err != nil {
		return nil, err
	}
	staged := path.Join(st.dir, name)
	if _, err := st.store.fs.Stat(staged); err != nil {
		return nil, fmt.Errorf("staged file %s: %w", name, err)
	}

	unlock := st.store.lockEntry(name)
	defer unlock()

	if err := st.store.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return nil, err
	}

	for _, alg := range checksum.Algorithms() {
		side := checksum.SideFile(name, alg)
		stagedSide := checksum.SideFile(staged, alg)
		if _, err := st.store.fs.Stat(stagedSide); err == nil {
			if err := st.store.fs.Rename(stagedSide, side); err != nil {
				return nil, fmt.Errorf("commit %s: %w", side, err)
			}
			continue
		}
		if err := st.store.fs.Remove(side); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s: %w", side, err)
		}
	}

	if err := st.store.fs.Rename(staged, name); err != nil {
		return nil, fmt.Errorf("commit %s: %w", name, err)
	}

	info, err := st.store.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	committedAt := time.Now().UTC()
	if err := st.store.touch(name, committedAt); err != nil {
		return nil, err
	}
	entry := st.store.entry(name, info.Size(), committedAt)
	return &entry, nil
}

// Discard 删除整个暂存目录，可重复调用。
func (st *Staging) Discard() error {
	return util.RemoveAll(st.store.fs, st.dir)
}
