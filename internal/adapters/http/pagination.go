package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses. Query
// parameters other than offset and limit are carried over, so links keep
// the same location and filter.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	var keep []string
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if key == "offset" || key == "limit" {
			return
		}
		keep = append(keep, key+"="+string(v))
	})
	prefix := ""
	if len(keep) > 0 {
		prefix = strings.Join(keep, "&") + "&"
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?%soffset=%s&limit=%d>; rel="%s"`, base, prefix, strconv.Itoa(offset), p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set(fiber.HeaderLink, strings.Join(links, ", "))
}
