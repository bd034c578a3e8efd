package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/any-hub/artifact-hub/internal/version"
)

// remoteURL 拼接源站 URL；rel 中的每个片段都会按路径规则转义。
func remoteURL(origin Origin, rel string) (string, error) {
	if origin.BaseURL == nil {
		return "", fmt.Errorf("origin %s has no url", origin.ID)
	}
	return origin.BaseURL.JoinPath(rel).String(), nil
}

// fetch 通过 GET 下载 rel 并写入 dst 中同名路径。
// 404/410 返回 ErrRemoteNotFound，其余非 200 返回 *RemoteStatusError，网络失败返回 *UnreachableError。
func fetch(ctx context.Context, client *http.Client, origin Origin, rel string, dst billy.Filesystem) error {
	target, err := remoteURL(origin, rel)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if origin.HasCredentials() {
		req.SetBasicAuth(origin.Username, origin.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &UnreachableError{Origin: origin.ID, URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: %w", target, ErrRemoteNotFound)
	default:
		io.Copy(io.Discard, resp.Body)
		return &RemoteStatusError{Origin: origin.ID, URL: target, Status: resp.StatusCode}
	}

	if err := dst.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return err
	}
	file, err := dst.Create(rel)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		dst.Remove(rel)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UnreachableError{Origin: origin.ID, URL: target, Err: copyErr}
	}
	if closeErr != nil {
		dst.Remove(rel)
		return closeErr
	}

	return nil
}

// isRemoteMissing 判断错误是否为源站明确的缺失应答。
func isRemoteMissing(err error) bool {
	return errors.Is(err, ErrRemoteNotFound)
}
