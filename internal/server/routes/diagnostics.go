package routes

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/artifact-hub/internal/artifact"
	"github.com/any-hub/artifact-hub/internal/layout"
	"github.com/any-hub/artifact-hub/internal/policy"
	"github.com/any-hub/artifact-hub/internal/proxy"
)

// RegisterDiagnostics 暴露 /-/ 下的只读诊断接口，供运维查询代理组、布局与策略。
func RegisterDiagnostics(app *fiber.App, engine *proxy.Engine) {
	if app == nil || engine == nil {
		return
	}

	app.Get("/-/groups", func(c fiber.Ctx) error {
		snap, err := engine.Registry().Snapshot()
		if err != nil {
			return configurationInvalid(c, err)
		}
		payload := fiber.Map{
			"groups":   encodeGroups(snap.Groups()),
			"built_at": snap.BuiltAt().Format(time.RFC3339),
		}
		if def := snap.Default(); def != nil {
			payload["default_group"] = def.ID
		}
		return c.JSON(payload)
	})

	app.Get("/-/layouts", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"layouts": layout.Keys(),
			"default": layout.DefaultKey(),
		})
	})

	app.Get("/-/policies", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"policies": policy.Names()})
	})

	app.Get("/-/coordinate/:repo/*", func(c fiber.Ctx) error {
		snap, err := engine.Registry().Snapshot()
		if err != nil {
			return configurationInvalid(c, err)
		}
		group, ok := snap.Group(c.Params("repo"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository_not_found"})
		}
		strict, _ := strconv.ParseBool(c.Query("strict"))
		payload, err := translate(group.Layout, c.Params("*"), strict)
		if err != nil {
			var layoutErr *layout.Error
			if errors.As(err, &layoutErr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":  "invalid_path",
					"path":   layoutErr.Path,
					"reason": layoutErr.Reason,
				})
			}
			return err
		}
		payload.Repository = group.ID
		return c.JSON(payload)
	})
}

type groupPayload struct {
	ID           string          `json:"id"`
	Location     string          `json:"location"`
	Layout       string          `json:"layout"`
	Default      bool            `json:"default"`
	Origins      []originPayload `json:"origins"`
	NetworkProxy string          `json:"network_proxy,omitempty"`
}

type originPayload struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	ChecksumPolicy string   `json:"checksum_policy"`
	AuthMode       string   `json:"auth_mode"`
	Whitelist      []string `json:"whitelist,omitempty"`
	Blacklist      []string `json:"blacklist,omitempty"`
}

type coordinatePayload struct {
	Repository string                       `json:"repository"`
	Path       string                       `json:"path"`
	Coordinate artifact.Coordinate          `json:"coordinate"`
	Canonical  string                       `json:"canonical_path"`
	Project    *artifact.ProjectReference   `json:"project,omitempty"`
	Versioned  *artifact.VersionedReference `json:"versioned,omitempty"`
	Snapshot   bool                         `json:"snapshot"`
	Timestamp  bool                         `json:"timestamped_snapshot"`
}

func encodeGroups(groups []*proxy.Group) []groupPayload {
	result := make([]groupPayload, 0, len(groups))
	for _, g := range groups {
		item := groupPayload{
			ID:       g.ID,
			Location: g.Location,
			Layout:   g.Layout.ID(),
			Default:  g.Default,
			Origins:  make([]originPayload, 0, len(g.Origins)),
		}
		for _, o := range g.Origins {
			item.Origins = append(item.Origins, originPayload{
				ID:             o.ID,
				URL:            o.BaseURL.Redacted(),
				ChecksumPolicy: o.ChecksumPolicy,
				AuthMode:       o.AuthMode(),
				Whitelist:      o.Whitelist,
				Blacklist:      o.Blacklist,
			})
		}
		if g.NetworkProxy != nil {
			item.NetworkProxy = g.NetworkProxy.URL().Redacted()
		}
		result = append(result, item)
	}
	return result
}

// translate 把仓库路径解析为坐标；metadata 路径额外给出引用信息。
func translate(l layout.Layout, rel string, strict bool) (*coordinatePayload, error) {
	rel = strings.TrimPrefix(rel, "/")
	coord, err := l.ToCoordinate(rel, strict)
	if err != nil {
		return nil, err
	}

	payload := &coordinatePayload{
		Path:       rel,
		Coordinate: coord,
		Snapshot:   coord.IsSnapshot(),
		Timestamp:  artifact.IsUniqueSnapshot(coord.Version),
	}
	segs := layout.SplitPath(rel)
	if len(segs) > 0 && layout.IsMetadataFilename(segs[len(segs)-1]) {
		if ref, err := l.ToVersionedReference(rel); err == nil {
			project := artifact.ProjectReference{GroupID: ref.GroupID, ArtifactID: ref.ArtifactID}
			payload.Project = &project
			if ref.Version != "" {
				payload.Versioned = &ref
				payload.Canonical = l.VersionedReferenceToPath(ref)
			} else {
				payload.Canonical = l.ProjectReferenceToPath(project)
			}
		}
		return payload, nil
	}
	if coord.GroupID != "" && coord.ArtifactID != "" {
		project := coord.ProjectReference()
		payload.Project = &project
		if coord.BaseVersion != "" {
			versioned := coord.VersionedReference()
			payload.Versioned = &versioned
		}
	}
	if coord.Type != "" {
		payload.Canonical = l.ToPath(coord)
	}
	return payload, nil
}

func configurationInvalid(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":  "configuration_invalid",
		"reason": err.Error(),
	})
}
