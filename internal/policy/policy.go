// Package policy 实现下载校验策略：在远程文件提交到本地仓库之前，
// 依据校验文件决定接受、修复或拒绝。
//
// 策略只读取正文文件，绝不修改正文；FAIL 拒绝时会连同校验文件一并删除，
// FIX 总是重新生成 .sha1/.md5，IGNORE 不做任何处理。
package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/any-hub/artifact-hub/internal/checksum"
)

const (
	Fail   = "fail"
	Fix    = "fix"
	Ignore = "ignore"
)

// ErrPolicyViolation 是所有策略拒绝错误的哨兵值。
var ErrPolicyViolation = errors.New("download policy violation")

// ViolationError 描述一次被策略拒绝的下载。
type ViolationError struct {
	Policy string
	File   string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("policy %s rejected %s: %s", e.Policy, e.File, e.Reason)
}

// Is 让 errors.Is(err, ErrPolicyViolation) 成立。
func (e *ViolationError) Is(target error) bool {
	return target == ErrPolicyViolation
}

// Func 对 fsys 中的 file 执行策略，nil 表示接受。
type Func func(fsys billy.Filesystem, file string) error

func init() {
	MustRegister(Fail, applyFail)
	MustRegister(Fix, applyFix)
	MustRegister(Ignore, applyIgnore)
}

// Apply 按名称执行已注册策略。
func Apply(name string, fsys billy.Filesystem, file string) error {
	fn, ok := Fetch(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return fn(fsys, file)
}

func applyIgnore(billy.Filesystem, string) error {
	return nil
}

func applyFail(fsys billy.Filesystem, file string) error {
	var digests map[checksum.Algorithm]string
	for _, alg := range checksum.Algorithms() {
		side := checksum.SideFile(file, alg)
		raw, err := util.ReadFile(fsys, side)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read %s: %w", side, err)
		}

		if digests == nil {
			digests, err = digestFile(fsys, file)
			if err != nil {
				return err
			}
		}

		expected, err := checksum.Parse(alg, string(raw))
		if err != nil {
			return reject(fsys, file, fmt.Sprintf("unreadable %s checksum: %v", alg, err))
		}
		if expected != digests[alg] {
			return reject(fsys, file, fmt.Sprintf("%s mismatch: expected %s, actual %s", alg, expected, digests[alg]))
		}
	}
	return nil
}

func applyFix(fsys billy.Filesystem, file string) error {
	digests, err := digestFile(fsys, file)
	if err != nil {
		return err
	}
	name := path.Base(file)
	for _, alg := range checksum.Algorithms() {
		side := checksum.SideFile(file, alg)
		if err := util.WriteFile(fsys, side, []byte(checksum.Format(digests[alg], name)), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", side, err)
		}
	}
	return nil
}

func digestFile(fsys billy.Filesystem, file string) (map[checksum.Algorithm]string, error) {
	f, err := fsys.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	return checksum.Compute(f, checksum.Algorithms()...)
}

// reject 删除正文及全部校验文件后返回 ViolationError。
func reject(fsys billy.Filesystem, file, reason string) error {
	targets := []string{file}
	for _, alg := range checksum.Algorithms() {
		targets = append(targets, checksum.SideFile(file, alg))
	}
	for _, target := range targets {
		if err := fsys.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s after violation: %w", target, err)
		}
	}
	return &ViolationError{Policy: Fail, File: file, Reason: reason}
}
