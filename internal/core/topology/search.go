package topology

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/stratahq/strata/internal/common/errorx"
)

// defaultPageSize caps a search page when the caller does not ask for one
const defaultPageSize = 100

// Query is a read-side unit filter. All supplied predicates are AND-ed.
type Query struct {
	NumberContains string
	Status         UnitStatus
	Type           UnitType
	Excluded       *bool
	PageSize       int
	PageToken      string
}

// Page is one slice of a search result. NextToken is empty on the last
// page; results are never truncated without one.
type Page struct {
	Units     []Unit `json:"units"`
	Total     int    `json:"total"`
	NextToken string `json:"next_token,omitempty"`
}

// Search filters units by the query and returns one page, ordered by
// structural position so paging is stable across calls.
func Search(units []Unit, q Query) (*Page, error) {
	offset, err := decodePageToken(q.PageToken)
	if err != nil {
		return nil, err
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	matched := make([]Unit, 0, len(units))
	for _, u := range units {
		if q.matches(u) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.BlockIndex != b.BlockIndex {
			return a.BlockIndex < b.BlockIndex
		}
		if a.FloorIndex != b.FloorIndex {
			return a.FloorIndex < b.FloorIndex
		}
		return a.SlotIndex < b.SlotIndex
	})

	page := &Page{Total: len(matched)}
	if offset >= len(matched) {
		page.Units = []Unit{}
		return page, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	} else if end < len(matched) {
		page.NextToken = encodePageToken(end)
	}
	page.Units = matched[offset:end]
	return page, nil
}

func (q Query) matches(u Unit) bool {
	if q.NumberContains != "" && !strings.Contains(strings.ToLower(u.UnitNumber), strings.ToLower(q.NumberContains)) {
		return false
	}
	if q.Status != "" && u.Status != q.Status {
		return false
	}
	if q.Type != "" && u.Type != q.Type {
		return false
	}
	if q.Excluded != nil && u.Excluded != *q.Excluded {
		return false
	}
	return true
}

func encodePageToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, errorx.Validation("malformed page token")
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, errorx.Validation("malformed page token")
	}
	return offset, nil
}
