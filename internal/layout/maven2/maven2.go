// Package maven2 实现默认仓库布局：group(点转斜杠)/artifactId/baseVersion/artifactId-version[-classifier].ext。
package maven2

import (
	"errors"
	"regexp"
	"strings"

	"github.com/any-hub/artifact-hub/internal/artifact"
	"github.com/any-hub/artifact-hub/internal/layout"
)

// Key 是默认布局在注册表中的键。
const Key = "default"

func init() {
	layout.MustRegister(New())
}

// Layout 是无状态的默认布局实现。
type Layout struct{}

// New 返回默认布局。
func New() Layout {
	return Layout{}
}

func (Layout) ID() string {
	return Key
}

func (Layout) ToPath(c artifact.Coordinate) string {
	var b strings.Builder
	b.WriteString(groupPath(c.GroupID))
	b.WriteByte('/')
	b.WriteString(c.ArtifactID)
	b.WriteByte('/')
	if c.BaseVersion == "" {
		return b.String()
	}

	version := c.Version
	if version == "" {
		version = c.BaseVersion
	}
	b.WriteString(c.BaseVersion)
	b.WriteByte('/')
	b.WriteString(c.ArtifactID)
	b.WriteByte('-')
	b.WriteString(version)
	if c.HasClassifier() {
		b.WriteByte('-')
		b.WriteString(strings.TrimSpace(c.Classifier))
	}
	b.WriteByte('.')
	b.WriteString(layout.ExtensionForType(c.Type))
	return b.String()
}

func (Layout) ProjectReferenceToPath(ref artifact.ProjectReference) string {
	return groupPath(ref.GroupID) + "/" + ref.ArtifactID + "/" + layout.MetadataFilename
}

func (Layout) VersionedReferenceToPath(ref artifact.VersionedReference) string {
	var b strings.Builder
	b.WriteString(groupPath(ref.GroupID))
	b.WriteByte('/')
	b.WriteString(ref.ArtifactID)
	b.WriteByte('/')
	if ref.Version != "" {
		b.WriteString(artifact.BaseVersion(ref.Version))
		b.WriteByte('/')
	}
	b.WriteString(layout.MetadataFilename)
	return b.String()
}

func (l Layout) ToCoordinate(path string, strict bool) (artifact.Coordinate, error) {
	segs := layout.SplitPath(path)
	n := len(segs)
	if n < 4 {
		return artifact.Coordinate{}, layout.Errorf(path, "not enough path segments to parse artifact (need at least 4, got %d)", n)
	}

	filename := segs[n-1]
	versionDir := segs[n-2]

	if isMetadataFile(filename) && !artifact.IsVersion(versionDir) {
		return artifact.Coordinate{
			GroupID:    strings.Join(segs[:n-2], "."),
			ArtifactID: segs[n-2],
		}, nil
	}

	artifactPos := n - 3
	partial := artifact.Coordinate{
		GroupID:     strings.Join(segs[:artifactPos], "."),
		ArtifactID:  segs[artifactPos],
		BaseVersion: versionDir,
	}
	if isMetadataFile(filename) {
		return partial, nil
	}

	parsed, err := parseFilename(path, filename, partial.ArtifactID, versionDir)
	if err != nil {
		if !strict && isDecomposeError(err) {
			return partial, nil
		}
		return artifact.Coordinate{}, err
	}

	if base := artifact.BaseVersion(parsed.version); base != versionDir {
		return artifact.Coordinate{}, layout.Errorf(path,
			"version %s in filename does not match version directory %s", parsed.version, versionDir)
	}

	return artifact.Coordinate{
		GroupID:     partial.GroupID,
		ArtifactID:  partial.ArtifactID,
		BaseVersion: versionDir,
		Version:     parsed.version,
		Classifier:  parsed.classifier,
		Type:        layout.TypeFor(parsed.ext, parsed.classifier),
	}, nil
}

func (Layout) ToProjectReference(path string) (artifact.ProjectReference, error) {
	ref, err := parseMetadataPath(path)
	if err != nil {
		return artifact.ProjectReference{}, err
	}
	return artifact.ProjectReference{GroupID: ref.GroupID, ArtifactID: ref.ArtifactID}, nil
}

func (Layout) ToVersionedReference(path string) (artifact.VersionedReference, error) {
	return parseMetadataPath(path)
}

func (l Layout) IsValidPath(path string) bool {
	_, err := l.ToCoordinate(path, false)
	return err == nil
}

func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

// isMetadataFile 同时覆盖 metadata 本体及其校验文件。
func isMetadataFile(name string) bool {
	return layout.IsMetadataFilename(name) || strings.HasPrefix(name, layout.MetadataFilename+".")
}

func parseMetadataPath(path string) (artifact.VersionedReference, error) {
	segs := layout.SplitPath(path)
	n := len(segs)
	if n == 0 || !layout.IsMetadataFilename(segs[n-1]) {
		return artifact.VersionedReference{}, layout.Errorf(path, "not a metadata path, expected trailing %s", layout.MetadataFilename)
	}
	if n < 3 {
		return artifact.VersionedReference{}, layout.Errorf(path, "not enough path segments for metadata (need at least 3, got %d)", n)
	}

	if artifact.IsVersion(segs[n-2]) {
		if n < 4 {
			return artifact.VersionedReference{}, layout.Errorf(path, "missing groupId before version directory %s", segs[n-2])
		}
		return artifact.VersionedReference{
			GroupID:    strings.Join(segs[:n-3], "."),
			ArtifactID: segs[n-3],
			Version:    artifact.BaseVersion(segs[n-2]),
		}, nil
	}

	return artifact.VersionedReference{
		GroupID:    strings.Join(segs[:n-2], "."),
		ArtifactID: segs[n-2],
	}, nil
}

var checksumSuffixes = []string{".sha1", ".md5", ".asc"}

type filenameParts struct {
	version    string
	classifier string
	ext        string
}

// decomposeError 表示文件名无法拆分为 version/classifier/ext，非严格模式下可降级。
type decomposeError struct {
	cause error
}

func (e *decomposeError) Error() string { return e.cause.Error() }

func (e *decomposeError) Unwrap() error { return e.cause }

func isDecomposeError(err error) bool {
	var target *decomposeError
	return errors.As(err, &target)
}

func parseFilename(path, filename, artifactID, versionDir string) (filenameParts, error) {
	prefix := artifactID + "-"
	if !strings.HasPrefix(filename, prefix) || len(filename) == len(prefix) {
		return filenameParts{}, layout.Errorf(path, "filename %s does not start with artifactId %s", filename, artifactID)
	}
	rest := filename[len(prefix):]

	if parts, ok := matchKnownVersion(rest, versionDir); ok {
		return parts, nil
	}

	parts, ok := matchAnyVersion(rest)
	if !ok {
		return filenameParts{}, &decomposeError{cause: layout.Errorf(path,
			"unable to split %s into version, classifier and extension", filename)}
	}
	return parts, nil
}

// matchKnownVersion 优先使用版本目录（含时间戳快照形式）定位文件名中的版本。
func matchKnownVersion(rest, versionDir string) (filenameParts, bool) {
	candidates := make([]string, 0, 2)
	if strings.HasSuffix(versionDir, "-"+artifact.SnapshotSuffix) {
		base := strings.TrimSuffix(versionDir, "-"+artifact.SnapshotSuffix)
		re := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `-[0-9]{8}\.[0-9]{6}-[0-9]+`)
		if loc := re.FindStringIndex(rest); loc != nil {
			candidates = append(candidates, rest[:loc[1]])
		}
	}
	candidates = append(candidates, versionDir)

	for _, version := range candidates {
		if !strings.HasPrefix(rest, version) || len(rest) == len(version) {
			continue
		}
		tail := rest[len(version):]
		switch tail[0] {
		case '.':
			ext := tail[1:]
			if ext == "" || isDigit(ext[0]) || ext[0] == '.' {
				continue
			}
			return filenameParts{version: version, ext: ext}, true
		case '-':
			classifier, ext, ok := splitClassifier(tail[1:])
			if !ok {
				continue
			}
			return filenameParts{version: version, classifier: classifier, ext: ext}, true
		}
	}
	return filenameParts{}, false
}

// matchAnyVersion 在不知道版本目录时按 '-' 片段贪婪截取版本。
func matchAnyVersion(rest string) (filenameParts, bool) {
	body, suffix := stripChecksumSuffix(rest)
	stem, ext, ok := layout.SplitExtension(body)
	if !ok || isDigit(ext[0]) {
		return filenameParts{}, false
	}
	tokens := strings.Split(stem, "-")
	if tokens[0] == "" || !isDigit(tokens[0][0]) || tokens[len(tokens)-1] == "" {
		return filenameParts{}, false
	}
	end := 1
	for end < len(tokens) && artifact.IsVersionToken(tokens[end]) {
		end++
	}
	return filenameParts{
		version:    strings.Join(tokens[:end], "-"),
		classifier: strings.Join(tokens[end:], "-"),
		ext:        ext + suffix,
	}, true
}

func splitClassifier(tail string) (string, string, bool) {
	body, suffix := stripChecksumSuffix(tail)
	classifier, ext, ok := layout.SplitExtension(body)
	if !ok || classifier == "" {
		return "", "", false
	}
	return classifier, ext + suffix, true
}

func stripChecksumSuffix(name string) (string, string) {
	lower := strings.ToLower(name)
	for _, suffix := range checksumSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)], name[len(name)-len(suffix):]
		}
	}
	return name, ""
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
